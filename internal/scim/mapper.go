package scim

import (
	"strings"

	"github.com/scimgate/scimgate/internal/directory"
)

// userToSCIM maps a directory account onto the wire User resource. It
// is total for any account the store can return.
func userToSCIM(a *directory.Account, baseURL string) *User {
	active := a.Active
	created := a.CreatedAt
	lastModified := a.UpdatedAt

	u := &User{
		Schemas:    []string{SchemaUser},
		ID:         a.ID,
		ExternalID: a.ExternalID,
		UserName:   a.Username,
		Active:     &active,
		Meta: &Meta{
			ResourceType: "User",
			Created:      &created,
			LastModified: &lastModified,
			Location:     baseURL + "/Users/" + a.ID,
		},
	}

	if a.GivenName != "" || a.FamilyName != "" {
		u.Name = &Name{
			GivenName:  a.GivenName,
			FamilyName: a.FamilyName,
			Formatted:  formatName(a.GivenName, a.FamilyName),
		}
	}

	if a.Email != "" {
		u.Emails = []Email{{Value: a.Email, Type: "work", Primary: true}}
	}

	return u
}

// groupToSCIM maps a directory group onto the wire Group resource.
// Member display labels come from the store's joined usernames.
func groupToSCIM(g *directory.Group, baseURL string) *Group {
	created := g.CreatedAt
	lastModified := g.UpdatedAt

	out := &Group{
		Schemas:     []string{SchemaGroup},
		ID:          g.ID,
		ExternalID:  g.ExternalID,
		DisplayName: g.DisplayName,
		Meta: &Meta{
			ResourceType: "Group",
			Created:      &created,
			LastModified: &lastModified,
			Location:     baseURL + "/Groups/" + g.ID,
		},
	}

	for _, m := range g.Members {
		out.Members = append(out.Members, MemberRef{
			Value:   m.AccountID,
			Display: m.Display,
			Type:    "User",
			Ref:     baseURL + "/Users/" + m.AccountID,
		})
	}

	return out
}

// userFromSCIM builds the account record a User payload describes.
// Attributes absent from the payload take their defaults (active
// defaults to true), which gives PUT its full-replacement semantics.
// existing carries the immutable fields forward on replacement.
func userFromSCIM(body *User, existing *directory.Account) (*directory.Account, error) {
	if strings.TrimSpace(body.UserName) == "" {
		return nil, ErrInvalidValue("userName is a required field")
	}

	a := &directory.Account{
		Username:   body.UserName,
		ExternalID: body.ExternalID,
		Active:     true,
	}
	if existing != nil {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}

	if body.Active != nil {
		a.Active = *body.Active
	}
	if body.Name != nil {
		a.GivenName = body.Name.GivenName
		a.FamilyName = body.Name.FamilyName
	}
	a.Email = primaryEmail(body.Emails)

	return a, nil
}

// groupFromSCIM builds the group record a Group payload describes.
// Member references are carried through unresolved; the caller resolves
// them against the store before writing.
func groupFromSCIM(body *Group, existing *directory.Group) (*directory.Group, error) {
	if strings.TrimSpace(body.DisplayName) == "" {
		return nil, ErrInvalidValue("displayName is a required field")
	}

	g := &directory.Group{
		DisplayName: body.DisplayName,
		ExternalID:  body.ExternalID,
	}
	if existing != nil {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
	}

	for _, m := range body.Members {
		if strings.TrimSpace(m.Value) == "" {
			return nil, ErrInvalidValue("member value must be a non-empty account id")
		}
		g.Members = append(g.Members, directory.Member{AccountID: m.Value})
	}

	return g, nil
}

func formatName(given, family string) string {
	switch {
	case given != "" && family != "":
		return given + " " + family
	case given != "":
		return given
	default:
		return family
	}
}

func primaryEmail(emails []Email) string {
	for _, e := range emails {
		if e.Primary {
			return e.Value
		}
	}
	if len(emails) > 0 {
		return emails[0].Value
	}
	return ""
}
