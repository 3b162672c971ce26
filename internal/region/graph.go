package region

// FindIsolatedRegions returns regions with no outgoing connections.
// A region other regions point at is still isolated if its own list is
// empty; connections are directional.
func FindIsolatedRegions(regions []Region) []Region {
	var isolated []Region
	for _, r := range regions {
		if len(r.Connections) == 0 {
			isolated = append(isolated, r)
		}
	}
	return isolated
}

// RepairDanglingConnections drops connection ids that do not resolve to a
// region in the set. The input is not mutated; the cleaned set is
// returned. Running it twice yields the same result.
func RepairDanglingConnections(regions []Region) []Region {
	known := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		known[r.ID] = struct{}{}
	}

	cleaned := make([]Region, len(regions))
	for i, r := range regions {
		cleaned[i] = r
		kept := make([]string, 0, len(r.Connections))
		for _, id := range r.Connections {
			if _, ok := known[id]; ok {
				kept = append(kept, id)
			}
		}
		cleaned[i].Connections = kept
	}
	return cleaned
}

// filterConnections keeps only ids present in the known set, preserving
// order and dropping duplicates.
func filterConnections(connections []string, known map[string]struct{}) []string {
	kept := make([]string, 0, len(connections))
	seen := make(map[string]struct{}, len(connections))
	for _, id := range connections {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	return kept
}
