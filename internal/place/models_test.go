package place

import (
	"testing"

	"loremap-server/internal/shared/errors"
)

func TestNormalize_Defaults(t *testing.T) {
	p, err := Normalize(PlaceInput{Name: "Harbor"}, "r1")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if p.ID == "" {
		t.Error("expected a generated id")
	}
	if p.RegionID != "r1" {
		t.Errorf("region id = %q, want r1", p.RegionID)
	}
	if p.Type != PlaceTypeLandmark {
		t.Errorf("type = %q, want landmark", p.Type)
	}
	if p.Size != PlaceSizeMedium {
		t.Errorf("size = %q, want medium", p.Size)
	}
	if p.Importance != 1 {
		t.Errorf("importance = %d, want 1", p.Importance)
	}
	if p.Position.X != 0 || p.Position.Y != 0 {
		t.Errorf("position = %+v, want {0 0}", p.Position)
	}
	if p.Connections == nil || p.Routes == nil {
		t.Error("connections and routes should be empty slices, not nil")
	}
}

func TestNormalize_KeepsSuppliedValues(t *testing.T) {
	x, y := 3.5, -1.0
	four := 4
	p, err := Normalize(PlaceInput{
		ID:         "harbor",
		Name:       "  Harbor  ",
		Type:       PlaceTypeCity,
		Size:       PlaceSizeLarge,
		Importance: &four,
		Position:   &PositionInput{X: &x, Y: &y},
	}, "r1")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if p.ID != "harbor" {
		t.Errorf("id = %q, want harbor", p.ID)
	}
	if p.Name != "Harbor" {
		t.Errorf("name = %q, want trimmed Harbor", p.Name)
	}
	if p.Type != PlaceTypeCity || p.Size != PlaceSizeLarge || p.Importance != 4 {
		t.Errorf("got %q/%q/%d, want city/large/4", p.Type, p.Size, p.Importance)
	}
	if p.Position.X != 3.5 || p.Position.Y != -1.0 {
		t.Errorf("position = %+v, want {3.5 -1}", p.Position)
	}
}

func TestNormalize_Validation(t *testing.T) {
	zero, six := 0, 6
	tests := []struct {
		name  string
		input PlaceInput
	}{
		{"missing name", PlaceInput{}},
		{"whitespace name", PlaceInput{Name: "   "}},
		{"whitespace id", PlaceInput{ID: "  ", Name: "Harbor"}},
		{"unknown type", PlaceInput{Name: "Harbor", Type: PlaceType("village")}},
		{"unknown size", PlaceInput{Name: "Harbor", Size: PlaceSize("huge")}},
		{"importance below range", PlaceInput{Name: "Harbor", Importance: &zero}},
		{"importance above range", PlaceInput{Name: "Harbor", Importance: &six}},
		{"route without destination", PlaceInput{Name: "Harbor", Routes: []Route{{To: ""}}}},
		{"unknown route type", PlaceInput{Name: "Harbor", Routes: []Route{{To: "keep", Type: RouteType("scenic")}}}},
		{"unknown route danger", PlaceInput{Name: "Harbor", Routes: []Route{{To: "keep", Danger: RouteDanger("mild")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input, "r1")
			if err == nil || errors.GetType(err) != errors.ErrorTypeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNormalize_RouteDefaults(t *testing.T) {
	p, err := Normalize(PlaceInput{
		Name:   "Harbor",
		Routes: []Route{{To: "keep"}},
	}, "r1")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(p.Routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(p.Routes))
	}
	if p.Routes[0].Type != RouteTypeTrade {
		t.Errorf("route type = %q, want trade", p.Routes[0].Type)
	}
	if p.Routes[0].Danger != RouteDangerSafe {
		t.Errorf("route danger = %q, want safe", p.Routes[0].Danger)
	}
}
