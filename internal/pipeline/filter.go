package pipeline

// FilterActivities applies the exclusion rules configured in settings for
// the given consumption target and returns the surviving activities as a new
// slice. Three independent rules all have to pass: the type blocklist, the
// per-sport virtual-activity exclusion, and the title-pattern blocklist.
// Empty settings yield the unfiltered list; the input is never mutated.
func FilterActivities(activities []Activity, settings Settings, target Target) []Activity {
	if target == "" {
		target = TargetHighlights
	}

	filtered := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if typeExcluded(a.Type, settings.ExcludedActivityTypes) {
			continue
		}
		if virtualExcluded(a.Type, settings, target) {
			continue
		}
		if titleExcluded(a.Name, settings.TitleIgnorePatterns, target) {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

func typeExcluded(t ActivityType, excluded []ActivityType) bool {
	for _, e := range excluded {
		if e == t {
			return true
		}
	}
	return false
}

func virtualExcluded(t ActivityType, settings Settings, target Target) bool {
	for sport, virtualType := range virtualTypeBySport {
		if t != virtualType {
			continue
		}
		if exclusion, ok := settings.ExcludeVirtual[sport]; ok && exclusion.For(target) {
			return true
		}
	}
	return false
}

func titleExcluded(name string, patterns []TitleIgnorePattern, target Target) bool {
	for _, p := range patterns {
		if p.AppliesTo(target) && p.MatchesName(name) {
			return true
		}
	}
	return false
}

// MatchesCustomFilters reports whether the activity satisfies the custom
// filter configured for its type. With no filter configured the activity
// never matches. The distance axis passes when the filter has no distance
// constraints or any one of them matches; the title axis passes when the
// filter has no title patterns or any one is a case-insensitive substring of
// the activity name. Both axes must pass.
func MatchesCustomFilters(a Activity, settings Settings) bool {
	filter, ok := settings.FilterFor(a.Type)
	if !ok {
		return false
	}
	return matchesDistanceAxis(a, filter.DistanceFilters) && matchesTitleAxis(a, filter.TitlePatterns)
}

func matchesDistanceAxis(a Activity, filters []DistanceFilter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Matches(a.DistanceKm) {
			return true
		}
	}
	return false
}

func matchesTitleAxis(a Activity, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if (TitleIgnorePattern{Pattern: p}).MatchesName(a.Name) {
			return true
		}
	}
	return false
}
