package scim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/scimgate/scimgate/internal/directory"
)

// The patch interpreter works in two phases: every operation is parsed
// into a closed variant against the patchable-attribute table first,
// then the parsed list is applied to the snapshot in request order. A
// bad operation anywhere in the list therefore rejects the whole
// request before the snapshot is touched.
//
// Patchable attributes:
//
//	User:  active, userName
//	Group: displayName, members

type userOp struct {
	kind     string
	active   *bool
	userName *string
}

// applyUserPatch interprets ops against an account snapshot. The
// mutated snapshot is the net changeset; the caller writes it once.
func applyUserPatch(a *directory.Account, ops []PatchOp) error {
	parsed, err := parseUserOps(ops)
	if err != nil {
		return err
	}

	for _, op := range parsed {
		if op.active != nil {
			a.Active = *op.active
		}
		if op.userName != nil {
			a.Username = *op.userName
		}
	}

	return nil
}

func parseUserOps(ops []PatchOp) ([]userOp, error) {
	parsed := make([]userOp, 0, len(ops))
	for _, op := range ops {
		kind, err := opKind(op.Op)
		if err != nil {
			return nil, err
		}

		path := strings.TrimSpace(op.Path)
		switch strings.ToLower(path) {
		case "":
			if kind == "remove" {
				return nil, &Error{Status: http.StatusBadRequest, ScimType: TypeNoTarget, Detail: "remove requires a path"}
			}
			out, err := parseUserValueObject(kind, op.Value)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, out)
		case "active":
			if kind == "remove" {
				return nil, ErrInvalidValue("active cannot be removed")
			}
			v, err := decodeBool(op.Value, "active")
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, userOp{kind: kind, active: &v})
		case "username":
			if kind == "remove" {
				return nil, ErrInvalidValue("userName cannot be removed")
			}
			v, err := decodeString(op.Value, "userName")
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, userOp{kind: kind, userName: &v})
		default:
			return nil, ErrInvalidPath(fmt.Sprintf("path %q is not patchable for User resources", op.Path))
		}
	}
	return parsed, nil
}

// parseUserValueObject handles an add/replace without a path, where the
// value is an object whose keys are treated as individual paths.
func parseUserValueObject(kind string, raw json.RawMessage) (userOp, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return userOp{}, ErrInvalidValue("value for an operation without a path must be an object")
	}

	out := userOp{kind: kind}
	for key, val := range fields {
		switch strings.ToLower(key) {
		case "active":
			v, err := decodeBool(val, "active")
			if err != nil {
				return userOp{}, err
			}
			out.active = &v
		case "username":
			v, err := decodeString(val, "userName")
			if err != nil {
				return userOp{}, err
			}
			out.userName = &v
		default:
			return userOp{}, ErrInvalidPath(fmt.Sprintf("attribute %q is not patchable for User resources", key))
		}
	}
	return out, nil
}

type groupOp struct {
	kind        string
	path        string // "displayName" or "members"
	displayName string
	memberIDs   []string
	hasValue    bool
}

// applyGroupPatch interprets ops against a group snapshot. Member
// references added or substituted by an operation are resolved against
// the store when that operation applies; an unresolved reference
// rejects the whole request.
func applyGroupPatch(ctx context.Context, store Store, g *directory.Group, ops []PatchOp) error {
	parsed, err := parseGroupOps(ops)
	if err != nil {
		return err
	}

	for _, op := range parsed {
		switch op.path {
		case "displayName":
			g.DisplayName = op.displayName
		case "members":
			if err := applyMemberOp(ctx, store, g, op); err != nil {
				return err
			}
		}
	}

	return nil
}

func applyMemberOp(ctx context.Context, store Store, g *directory.Group, op groupOp) error {
	switch op.kind {
	case "add":
		resolved, err := resolveMemberRefs(ctx, store, op.memberIDs)
		if err != nil {
			return err
		}
		present := make(map[string]bool, len(g.Members))
		for _, m := range g.Members {
			present[m.AccountID] = true
		}
		for _, id := range op.memberIDs {
			if present[id] {
				continue
			}
			present[id] = true
			g.Members = append(g.Members, directory.Member{AccountID: id, Display: resolved[id]})
		}
	case "replace":
		resolved, err := resolveMemberRefs(ctx, store, op.memberIDs)
		if err != nil {
			return err
		}
		g.Members = nil
		present := make(map[string]bool, len(op.memberIDs))
		for _, id := range op.memberIDs {
			if present[id] {
				continue
			}
			present[id] = true
			g.Members = append(g.Members, directory.Member{AccountID: id, Display: resolved[id]})
		}
	case "remove":
		if !op.hasValue {
			g.Members = nil
			return nil
		}
		drop := make(map[string]bool, len(op.memberIDs))
		for _, id := range op.memberIDs {
			drop[id] = true
		}
		kept := g.Members[:0]
		for _, m := range g.Members {
			if !drop[m.AccountID] {
				kept = append(kept, m)
			}
		}
		g.Members = kept
	}
	return nil
}

func parseGroupOps(ops []PatchOp) ([]groupOp, error) {
	parsed := make([]groupOp, 0, len(ops))
	for _, op := range ops {
		kind, err := opKind(op.Op)
		if err != nil {
			return nil, err
		}

		path := strings.TrimSpace(op.Path)
		if id, ok := parseMemberFilterPath(path); ok {
			if kind != "remove" {
				return nil, ErrInvalidPath(fmt.Sprintf("path %q is only valid for remove operations", op.Path))
			}
			parsed = append(parsed, groupOp{kind: kind, path: "members", memberIDs: []string{id}, hasValue: true})
			continue
		}

		switch strings.ToLower(path) {
		case "":
			if kind == "remove" {
				return nil, &Error{Status: http.StatusBadRequest, ScimType: TypeNoTarget, Detail: "remove requires a path"}
			}
			out, err := parseGroupValueObject(kind, op.Value)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, out...)
		case "displayname":
			if kind == "remove" {
				return nil, ErrInvalidValue("displayName cannot be removed")
			}
			v, err := decodeString(op.Value, "displayName")
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, groupOp{kind: kind, path: "displayName", displayName: v})
		case "members":
			if kind == "remove" {
				if len(op.Value) == 0 {
					// remove with no value clears the whole set
					parsed = append(parsed, groupOp{kind: kind, path: "members"})
					continue
				}
				ids, err := decodeMemberIDs(op.Value)
				if err != nil {
					return nil, err
				}
				parsed = append(parsed, groupOp{kind: kind, path: "members", memberIDs: ids, hasValue: true})
				continue
			}
			ids, err := decodeMemberIDs(op.Value)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, groupOp{kind: kind, path: "members", memberIDs: ids, hasValue: true})
		default:
			return nil, ErrInvalidPath(fmt.Sprintf("path %q is not patchable for Group resources", op.Path))
		}
	}
	return parsed, nil
}

func parseGroupValueObject(kind string, raw json.RawMessage) ([]groupOp, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, ErrInvalidValue("value for an operation without a path must be an object")
	}

	var out []groupOp
	for key, val := range fields {
		switch strings.ToLower(key) {
		case "displayname":
			v, err := decodeString(val, "displayName")
			if err != nil {
				return nil, err
			}
			out = append(out, groupOp{kind: kind, path: "displayName", displayName: v})
		case "members":
			ids, err := decodeMemberIDs(val)
			if err != nil {
				return nil, err
			}
			out = append(out, groupOp{kind: kind, path: "members", memberIDs: ids, hasValue: true})
		default:
			return nil, ErrInvalidPath(fmt.Sprintf("attribute %q is not patchable for Group resources", key))
		}
	}
	return out, nil
}

// parseMemberFilterPath recognizes the members[value eq "id"] path
// form some IdPs use for targeted member removal.
func parseMemberFilterPath(path string) (string, bool) {
	const prefix = "members["
	if len(path) <= len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) || !strings.HasSuffix(path, "]") {
		return "", false
	}
	f, err := ParseFilter(path[len(prefix):len(path)-1], "value")
	if err != nil {
		return "", false
	}
	return f.Value, true
}

// resolveMemberRefs checks every referenced account exists and returns
// the id to username mapping for display labels.
func resolveMemberRefs(ctx context.Context, store Store, ids []string) (map[string]string, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	resolved, err := store.ResolveAccounts(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("resolve members: %w", err)
	}
	for _, id := range unique {
		if _, ok := resolved[id]; !ok {
			return nil, ErrInvalidMemberRef(fmt.Sprintf("member %q does not resolve to an existing account", id))
		}
	}

	return resolved, nil
}

func opKind(op string) (string, error) {
	switch kind := strings.ToLower(strings.TrimSpace(op)); kind {
	case "add", "replace", "remove":
		return kind, nil
	default:
		return "", ErrInvalidValue(fmt.Sprintf("unknown patch op %q", op))
	}
}

func decodeBool(raw json.RawMessage, attr string) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	// Azure AD sends booleans as quoted "True"/"False" strings
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, ErrInvalidValue(fmt.Sprintf("%s requires a boolean value", attr))
}

func decodeString(raw json.RawMessage, attr string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", ErrInvalidValue(fmt.Sprintf("%s requires a string value", attr))
	}
	if strings.TrimSpace(s) == "" {
		return "", ErrInvalidValue(fmt.Sprintf("%s must not be empty", attr))
	}
	return s, nil
}

// decodeMemberIDs accepts either a list of member objects or a single
// member object, each carrying a value with the account id.
func decodeMemberIDs(raw json.RawMessage) ([]string, error) {
	type memberValue struct {
		Value string `json:"value"`
	}

	var list []memberValue
	if err := json.Unmarshal(raw, &list); err == nil {
		ids := make([]string, 0, len(list))
		for _, m := range list {
			if strings.TrimSpace(m.Value) == "" {
				return nil, ErrInvalidValue("member entries require a non-empty value")
			}
			ids = append(ids, m.Value)
		}
		return ids, nil
	}

	var single memberValue
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single.Value) != "" {
		return []string{single.Value}, nil
	}

	return nil, ErrInvalidValue("members requires a list of {value} objects")
}
