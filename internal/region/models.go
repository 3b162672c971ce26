package region

import (
	"strings"
	"time"

	"loremap-server/internal/place"
	"loremap-server/internal/shared/errors"

	"github.com/google/uuid"
)

// UserType is the visibility tier a request is evaluated against.
type UserType string

const (
	UserTypeFree     UserType = "free"
	UserTypeSignedIn UserType = "signed_in"
	UserTypePremium  UserType = "premium"
)

// ParseUserType rejects unrecognized tiers instead of silently treating
// them as free.
func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case UserTypeFree, UserTypeSignedIn, UserTypePremium:
		return UserType(s), nil
	}
	return "", errors.Validationf("unknown user type %q", s)
}

// Position is a normalized map coordinate in [0,100] on both axes.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VisibilityFlags are three independently authored toggles, not a
// hierarchy: a region may be visible to premium users only, or to none.
type VisibilityFlags struct {
	FreeUsers     bool `json:"freeUsers"`
	SignedInUsers bool `json:"signedInUsers"`
	PremiumUsers  bool `json:"premiumUsers"`
}

// visibleTo treats a missing visibility object as visible to every tier.
// This fail-open default is resolved here and nowhere else.
func (v *VisibilityFlags) visibleTo(userType UserType) bool {
	if v == nil {
		return true
	}
	switch userType {
	case UserTypeFree:
		return v.FreeUsers
	case UserTypeSignedIn:
		return v.SignedInUsers
	case UserTypePremium:
		return v.PremiumUsers
	}
	return false
}

// Region is a top-level map node. Connections are directed references to
// other region ids; region A listing B does not obligate B to list A.
type Region struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Subtitle     string           `json:"subtitle"`
	Description  string           `json:"description"`
	Position     Position         `json:"position"`
	Color        string           `json:"color"`
	KeyLocations []string         `json:"keyLocations"`
	Population   string           `json:"population"`
	Threat       string           `json:"threat"`
	Connections  []string         `json:"connections"`
	Visibility   *VisibilityFlags `json:"visibility,omitempty"`
	Places       []place.Place    `json:"places"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// PositionInput allows either axis to be omitted; missing axes default to 0.
type PositionInput struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// VisibilityInput allows individual flags to be omitted. On create and
// import, missing flags default to true.
type VisibilityInput struct {
	FreeUsers     *bool `json:"freeUsers"`
	SignedInUsers *bool `json:"signedInUsers"`
	PremiumUsers  *bool `json:"premiumUsers"`
}

// RegionInput is the creation/import payload.
type RegionInput struct {
	ID           string             `json:"id,omitempty"`
	Name         string             `json:"name"`
	Subtitle     string             `json:"subtitle"`
	Description  string             `json:"description,omitempty"`
	Position     *PositionInput     `json:"position,omitempty"`
	Color        string             `json:"color,omitempty"`
	KeyLocations []string           `json:"keyLocations,omitempty"`
	Population   string             `json:"population,omitempty"`
	Threat       string             `json:"threat,omitempty"`
	Connections  []string           `json:"connections,omitempty"`
	Visibility   *VisibilityInput   `json:"visibility,omitempty"`
	Places       []place.PlaceInput `json:"places,omitempty"`
}

// RegionPatch is a partial update; only non-nil fields are applied.
type RegionPatch struct {
	Name         *string          `json:"name"`
	Subtitle     *string          `json:"subtitle"`
	Description  *string          `json:"description"`
	Position     *PositionInput   `json:"position"`
	Color        *string          `json:"color"`
	KeyLocations *[]string        `json:"keyLocations"`
	Population   *string          `json:"population"`
	Threat       *string          `json:"threat"`
	Connections  *[]string        `json:"connections"`
	Visibility   *VisibilityInput `json:"visibility"`
}

func normalizePosition(input *PositionInput) Position {
	var position Position
	if input == nil {
		return position
	}
	if input.X != nil {
		position.X = *input.X
	}
	if input.Y != nil {
		position.Y = *input.Y
	}
	return position
}

func normalizeVisibility(input *VisibilityInput) *VisibilityFlags {
	flags := &VisibilityFlags{FreeUsers: true, SignedInUsers: true, PremiumUsers: true}
	if input == nil {
		return flags
	}
	if input.FreeUsers != nil {
		flags.FreeUsers = *input.FreeUsers
	}
	if input.SignedInUsers != nil {
		flags.SignedInUsers = *input.SignedInUsers
	}
	if input.PremiumUsers != nil {
		flags.PremiumUsers = *input.PremiumUsers
	}
	return flags
}

// normalizeInput validates a region payload and resolves every default in
// one step: generated id, zeroed position axes, all-true visibility.
// Embedded places are handled separately by the caller.
func normalizeInput(input RegionInput) (*Region, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.Validation("region name is required")
	}

	subtitle := strings.TrimSpace(input.Subtitle)
	if subtitle == "" {
		return nil, errors.Validation("region subtitle is required")
	}

	id := strings.TrimSpace(input.ID)
	if input.ID != "" && id == "" {
		return nil, errors.Validation("region id must be a non-empty string")
	}
	if id == "" {
		id = uuid.NewString()
	}

	keyLocations := make([]string, 0, len(input.KeyLocations))
	keyLocations = append(keyLocations, input.KeyLocations...)

	connections := make([]string, 0, len(input.Connections))
	connections = append(connections, input.Connections...)

	return &Region{
		ID:           id,
		Name:         name,
		Subtitle:     subtitle,
		Description:  input.Description,
		Position:     normalizePosition(input.Position),
		Color:        input.Color,
		KeyLocations: keyLocations,
		Population:   input.Population,
		Threat:       input.Threat,
		Connections:  connections,
		Visibility:   normalizeVisibility(input.Visibility),
		Places:       []place.Place{},
	}, nil
}

// applyPatch applies the non-nil fields of a patch to a region. A position
// patch replaces both axes together; missing axes default to 0, same as
// create. Connections are expected to be pre-filtered by the caller.
func applyPatch(r *Region, patch RegionPatch) {
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Subtitle != nil {
		r.Subtitle = *patch.Subtitle
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.Position != nil {
		r.Position = normalizePosition(patch.Position)
	}
	if patch.Color != nil {
		r.Color = *patch.Color
	}
	if patch.KeyLocations != nil {
		r.KeyLocations = append([]string{}, (*patch.KeyLocations)...)
	}
	if patch.Population != nil {
		r.Population = *patch.Population
	}
	if patch.Threat != nil {
		r.Threat = *patch.Threat
	}
	if patch.Connections != nil {
		r.Connections = append([]string{}, (*patch.Connections)...)
	}
	if patch.Visibility != nil {
		r.Visibility = applyVisibilityPatch(r.Visibility, patch.Visibility)
	}
}

// applyVisibilityPatch merges provided flags over the current ones. Unlike
// create, flags missing from an update keep their current value.
func applyVisibilityPatch(current *VisibilityFlags, patch *VisibilityInput) *VisibilityFlags {
	flags := &VisibilityFlags{FreeUsers: true, SignedInUsers: true, PremiumUsers: true}
	if current != nil {
		*flags = *current
	}
	if patch.FreeUsers != nil {
		flags.FreeUsers = *patch.FreeUsers
	}
	if patch.SignedInUsers != nil {
		flags.SignedInUsers = *patch.SignedInUsers
	}
	if patch.PremiumUsers != nil {
		flags.PremiumUsers = *patch.PremiumUsers
	}
	return flags
}
