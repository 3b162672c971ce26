package place

import (
	"strings"
	"time"

	"loremap-server/internal/shared/errors"

	"github.com/google/uuid"
)

type PlaceType string

const (
	PlaceTypeCity     PlaceType = "city"
	PlaceTypeTown     PlaceType = "town"
	PlaceTypeOutpost  PlaceType = "outpost"
	PlaceTypeLandmark PlaceType = "landmark"
	PlaceTypeFacility PlaceType = "facility"
	PlaceTypeRuins    PlaceType = "ruins"
)

type PlaceSize string

const (
	PlaceSizeSmall  PlaceSize = "small"
	PlaceSizeMedium PlaceSize = "medium"
	PlaceSizeLarge  PlaceSize = "large"
)

type RouteType string

const (
	RouteTypeTrade     RouteType = "trade"
	RouteTypeMilitary  RouteType = "military"
	RouteTypeSecret    RouteType = "secret"
	RouteTypeAbandoned RouteType = "abandoned"
)

type RouteDanger string

const (
	RouteDangerSafe      RouteDanger = "safe"
	RouteDangerModerate  RouteDanger = "moderate"
	RouteDangerDangerous RouteDanger = "dangerous"
	RouteDangerLethal    RouteDanger = "lethal"
)

// Position is an offset relative to the parent region's map position,
// not an absolute map coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Route is directed metadata layered on top of a place connection.
type Route struct {
	To          string      `json:"to"`
	Type        RouteType   `json:"type"`
	Danger      RouteDanger `json:"danger"`
	Description string      `json:"description,omitempty"`
}

type Place struct {
	ID          string    `json:"id"`
	RegionID    string    `json:"regionId"`
	Name        string    `json:"name"`
	Type        PlaceType `json:"type"`
	Position    Position  `json:"position"`
	Size        PlaceSize `json:"size"`
	Importance  int       `json:"importance"`
	Connections []string  `json:"connections"`
	Routes      []Route   `json:"routes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PositionInput allows either axis to be omitted; missing axes default to 0.
type PositionInput struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type PlaceInput struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        PlaceType      `json:"type,omitempty"`
	Position    *PositionInput `json:"position,omitempty"`
	Size        PlaceSize      `json:"size,omitempty"`
	Importance  *int           `json:"importance,omitempty"`
	Connections []string       `json:"connections,omitempty"`
	Routes      []Route        `json:"routes,omitempty"`
}

func validPlaceType(t PlaceType) bool {
	switch t {
	case PlaceTypeCity, PlaceTypeTown, PlaceTypeOutpost, PlaceTypeLandmark, PlaceTypeFacility, PlaceTypeRuins:
		return true
	}
	return false
}

func validPlaceSize(s PlaceSize) bool {
	switch s {
	case PlaceSizeSmall, PlaceSizeMedium, PlaceSizeLarge:
		return true
	}
	return false
}

func validRouteType(t RouteType) bool {
	switch t {
	case RouteTypeTrade, RouteTypeMilitary, RouteTypeSecret, RouteTypeAbandoned:
		return true
	}
	return false
}

func validRouteDanger(d RouteDanger) bool {
	switch d {
	case RouteDangerSafe, RouteDangerModerate, RouteDangerDangerous, RouteDangerLethal:
		return true
	}
	return false
}

// Normalize validates a place payload and resolves all defaults in one place:
// a generated id when absent, landmark/medium type and size, importance 1,
// zeroed position axes. Enum violations are validation errors.
func Normalize(input PlaceInput, regionID string) (*Place, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.Validation("place name is required")
	}

	id := strings.TrimSpace(input.ID)
	if input.ID != "" && id == "" {
		return nil, errors.Validation("place id must be a non-empty string")
	}
	if id == "" {
		id = uuid.NewString()
	}

	placeType := input.Type
	if placeType == "" {
		placeType = PlaceTypeLandmark
	}
	if !validPlaceType(placeType) {
		return nil, errors.Validationf("unknown place type %q", placeType)
	}

	size := input.Size
	if size == "" {
		size = PlaceSizeMedium
	}
	if !validPlaceSize(size) {
		return nil, errors.Validationf("unknown place size %q", size)
	}

	importance := 1
	if input.Importance != nil {
		importance = *input.Importance
		if importance < 1 || importance > 5 {
			return nil, errors.Validationf("place importance must be between 1 and 5, got %d", importance)
		}
	}

	var position Position
	if input.Position != nil {
		if input.Position.X != nil {
			position.X = *input.Position.X
		}
		if input.Position.Y != nil {
			position.Y = *input.Position.Y
		}
	}

	routes := make([]Route, 0, len(input.Routes))
	for _, route := range input.Routes {
		if strings.TrimSpace(route.To) == "" {
			return nil, errors.Validation("route destination is required")
		}
		if route.Type == "" {
			route.Type = RouteTypeTrade
		}
		if !validRouteType(route.Type) {
			return nil, errors.Validationf("unknown route type %q", route.Type)
		}
		if route.Danger == "" {
			route.Danger = RouteDangerSafe
		}
		if !validRouteDanger(route.Danger) {
			return nil, errors.Validationf("unknown route danger %q", route.Danger)
		}
		routes = append(routes, route)
	}

	connections := make([]string, 0, len(input.Connections))
	connections = append(connections, input.Connections...)

	return &Place{
		ID:          id,
		RegionID:    regionID,
		Name:        name,
		Type:        placeType,
		Position:    position,
		Size:        size,
		Importance:  importance,
		Connections: connections,
		Routes:      routes,
	}, nil
}
