package region

// VisibleTo returns the subset of regions whose visibility flag for the
// given tier is set, preserving input order. Regions without a visibility
// object are visible to every tier. Pure filter, no side effects.
func VisibleTo(regions []Region, userType UserType) ([]Region, error) {
	if _, err := ParseUserType(string(userType)); err != nil {
		return nil, err
	}

	visible := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Visibility.visibleTo(userType) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}
