package region

import (
	"strings"

	"loremap-server/internal/place"
)

// ImportError reports why a single batch item was rejected.
type ImportError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// PlaceError reports an embedded place that could not be created.
type PlaceError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// normalizeEmbeddedPlaces normalizes a region payload's nested places.
// Invalid places are reported, not fatal; connection and route references
// between sibling places are resolved to their final ids, and references
// that resolve to nothing are dropped.
func normalizeEmbeddedPlaces(inputs []place.PlaceInput, regionID string) ([]place.Place, []PlaceError) {
	var normalized []place.Place
	var failures []PlaceError

	finalID := make(map[string]string, len(inputs))
	known := make(map[string]struct{}, len(inputs))

	for _, input := range inputs {
		p, err := place.Normalize(input, regionID)
		if err != nil {
			failures = append(failures, PlaceError{Name: input.Name, Reason: err.Error()})
			continue
		}
		if input.ID != "" {
			finalID[strings.TrimSpace(input.ID)] = p.ID
		}
		known[p.ID] = struct{}{}
		normalized = append(normalized, *p)
	}

	for i := range normalized {
		p := &normalized[i]

		kept := make([]string, 0, len(p.Connections))
		for _, id := range p.Connections {
			resolved := id
			if mapped, ok := finalID[id]; ok {
				resolved = mapped
			}
			if _, ok := known[resolved]; ok {
				kept = append(kept, resolved)
			}
		}
		p.Connections = kept

		routes := make([]place.Route, 0, len(p.Routes))
		for _, route := range p.Routes {
			resolved := route.To
			if mapped, ok := finalID[route.To]; ok {
				resolved = mapped
			}
			if _, ok := known[resolved]; !ok {
				continue
			}
			route.To = resolved
			routes = append(routes, route)
		}
		p.Routes = routes
	}

	return normalized, failures
}

// batchItem is an accepted import item paired with its original position
// in the batch, so persistence failures can still be reported per index.
type batchItem struct {
	index  int
	region *Region
}

// resolveBatch validates and normalizes an import batch against the
// existing region id set. Each item is all-or-nothing; the batch is
// best-effort across items. Connection ids referring to other batch items
// are resolved to those items' final ids; ids resolving to neither the
// batch nor the existing set are dropped.
func resolveBatch(items []RegionInput, existing map[string]struct{}) ([]batchItem, []ImportError) {
	accepted := make([]batchItem, 0, len(items))
	var importErrors []ImportError

	finalID := make(map[string]string, len(items))
	batchIDs := make(map[string]struct{}, len(items))

	for i, input := range items {
		r, err := normalizeInput(input)
		if err != nil {
			importErrors = append(importErrors, ImportError{Index: i, Reason: err.Error()})
			continue
		}

		if _, taken := existing[r.ID]; taken {
			importErrors = append(importErrors, ImportError{Index: i, Reason: "region id " + r.ID + " already exists"})
			continue
		}
		if _, dup := batchIDs[r.ID]; dup {
			importErrors = append(importErrors, ImportError{Index: i, Reason: "region id " + r.ID + " duplicated within batch"})
			continue
		}

		places, placeFailures := normalizeEmbeddedPlaces(input.Places, r.ID)
		if len(placeFailures) > 0 {
			importErrors = append(importErrors, ImportError{Index: i, Reason: "invalid place " + placeFailures[0].Name + ": " + placeFailures[0].Reason})
			continue
		}
		r.Places = places

		if input.ID != "" {
			finalID[strings.TrimSpace(input.ID)] = r.ID
		}
		batchIDs[r.ID] = struct{}{}
		accepted = append(accepted, batchItem{index: i, region: r})
	}

	for _, item := range accepted {
		r := item.region
		kept := make([]string, 0, len(r.Connections))
		seen := make(map[string]struct{})
		for _, id := range r.Connections {
			resolved := id
			if mapped, ok := finalID[id]; ok {
				resolved = mapped
			}
			_, inBatch := batchIDs[resolved]
			_, inExisting := existing[resolved]
			if !inBatch && !inExisting {
				continue
			}
			if _, dup := seen[resolved]; dup {
				continue
			}
			seen[resolved] = struct{}{}
			kept = append(kept, resolved)
		}
		r.Connections = kept
	}

	return accepted, importErrors
}
