package scim

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scimgate/scimgate/internal/directory"
	"github.com/scimgate/scimgate/internal/metrics"
)

// handleListGroups serves GET /Groups with optional filter and
// pagination
func (s *Service) handleListGroups(c *gin.Context) {
	if err := checkListParams(c); err != nil {
		writeError(c, s.logger, err)
		return
	}

	p, err := s.parsePagination(c)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	var filter *Filter
	if raw := c.Query("filter"); raw != "" {
		filter, err = ParseFilter(raw, "displayName")
		if err != nil {
			writeError(c, s.logger, err)
			return
		}
		metrics.RecordFilterQuery("Group", filter.Attribute)
	}

	groups, err := s.store.ListGroups(c.Request.Context())
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	base := s.baseURL(c)
	matched := make([]*Group, 0, len(groups))
	for i := range groups {
		g := groupToSCIM(&groups[i], base)
		if filter != nil && !filter.Matches(g.DisplayName) {
			continue
		}
		matched = append(matched, g)
	}

	pageGroups := page(matched, p)
	resources := make([]any, len(pageGroups))
	for i, g := range pageGroups {
		resources[i] = g
	}

	writeJSON(c, http.StatusOK, NewListResponse(resources, len(matched), p.startIndex))
}

// handleCreateGroup serves POST /Groups. Member references in the body
// must resolve to existing accounts.
func (s *Service) handleCreateGroup(c *gin.Context) {
	var body Group
	if err := bindBody(c, &body); err != nil {
		writeError(c, s.logger, err)
		return
	}

	group, err := groupFromSCIM(&body, nil)
	if err != nil {
		metrics.RecordProvisioningOperation("Group", "create", "rejected")
		writeError(c, s.logger, err)
		return
	}

	ctx := c.Request.Context()
	if err := s.resolveGroupMembers(c, group); err != nil {
		metrics.RecordProvisioningOperation("Group", "create", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.store.CreateGroup(ctx, group); err != nil {
		metrics.RecordProvisioningOperation("Group", "create", "error")
		writeError(c, s.logger, err)
		return
	}

	metrics.RecordProvisioningOperation("Group", "create", "success")
	s.logger.Info("group provisioned",
		zap.String("group_id", group.ID),
		zap.String("display_name", group.DisplayName),
		zap.Int("members", len(group.Members)))

	resource := groupToSCIM(group, s.baseURL(c))
	c.Header("Location", resource.Meta.Location)
	writeJSON(c, http.StatusCreated, resource)
}

// handleGetGroup serves GET /Groups/:id
func (s *Service) handleGetGroup(c *gin.Context) {
	if err := checkListParams(c); err != nil {
		writeError(c, s.logger, err)
		return
	}

	group, err := s.store.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	writeJSON(c, http.StatusOK, groupToSCIM(group, s.baseURL(c)))
}

// handleReplaceGroup serves PUT /Groups/:id with full-replacement
// semantics: the member set in the body substitutes the stored one
// entirely.
func (s *Service) handleReplaceGroup(c *gin.Context) {
	var body Group
	if err := bindBody(c, &body); err != nil {
		writeError(c, s.logger, err)
		return
	}

	id := c.Param("id")
	if body.ID != "" && body.ID != id {
		writeError(c, s.logger, ErrInvalidValue("id in the body must match the id in the path"))
		return
	}

	ctx := c.Request.Context()
	existing, err := s.store.GetGroup(ctx, id)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	group, err := groupFromSCIM(&body, existing)
	if err != nil {
		metrics.RecordProvisioningOperation("Group", "replace", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.resolveGroupMembers(c, group); err != nil {
		metrics.RecordProvisioningOperation("Group", "replace", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		metrics.RecordProvisioningOperation("Group", "replace", "error")
		writeError(c, s.logger, err)
		return
	}

	metrics.RecordProvisioningOperation("Group", "replace", "success")
	writeJSON(c, http.StatusOK, groupToSCIM(group, s.baseURL(c)))
}

// handlePatchGroup serves PATCH /Groups/:id
func (s *Service) handlePatchGroup(c *gin.Context) {
	var req PatchRequest
	if err := bindBody(c, &req); err != nil {
		writeError(c, s.logger, err)
		return
	}
	if err := checkPatchSchemas(&req); err != nil {
		writeError(c, s.logger, err)
		return
	}

	ctx := c.Request.Context()
	group, err := s.store.GetGroup(ctx, c.Param("id"))
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	if err := applyGroupPatch(ctx, s.store, group, req.Operations); err != nil {
		metrics.RecordProvisioningOperation("Group", "patch", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		metrics.RecordProvisioningOperation("Group", "patch", "error")
		writeError(c, s.logger, err)
		return
	}

	for _, op := range req.Operations {
		metrics.RecordPatchOperation("Group", op.Op)
	}
	metrics.RecordProvisioningOperation("Group", "patch", "success")
	writeJSON(c, http.StatusOK, groupToSCIM(group, s.baseURL(c)))
}

// handleDeleteGroup serves DELETE /Groups/:id
func (s *Service) handleDeleteGroup(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteGroup(c.Request.Context(), id); err != nil {
		metrics.RecordProvisioningOperation("Group", "delete", "error")
		writeError(c, s.logger, err)
		return
	}

	metrics.RecordProvisioningOperation("Group", "delete", "success")
	s.logger.Info("group deprovisioned", zap.String("group_id", id))
	c.Status(http.StatusNoContent)
}

// resolveGroupMembers validates the group's member references and
// fills in their display labels, deduplicating by account id
func (s *Service) resolveGroupMembers(c *gin.Context, group *directory.Group) error {
	if len(group.Members) == 0 {
		return nil
	}

	ids := make([]string, len(group.Members))
	for i, m := range group.Members {
		ids[i] = m.AccountID
	}

	resolved, err := resolveMemberRefs(c.Request.Context(), s.store, ids)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(group.Members))
	members := group.Members[:0]
	for _, m := range group.Members {
		if seen[m.AccountID] {
			continue
		}
		seen[m.AccountID] = true
		m.Display = resolved[m.AccountID]
		members = append(members, m)
	}
	group.Members = members

	return nil
}
