package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Target names the consumption context a filter rule applies to. The same
// exclusion rule set carries independent flags for statistics and highlights
// so a title pattern can be hidden from one context but still counted in the
// other.
type Target string

const (
	TargetStats      Target = "stats"
	TargetHighlights Target = "highlights"
)

// TitleIgnorePattern excludes activities whose name contains the pattern
// (case-insensitive) from one or both consumption targets.
type TitleIgnorePattern struct {
	Pattern               string `json:"pattern"`
	ExcludeFromHighlights bool   `json:"exclude_from_highlights"`
	ExcludeFromStats      bool   `json:"exclude_from_stats"`
}

// AppliesTo reports whether the pattern's exclusion flag is set for target.
func (p TitleIgnorePattern) AppliesTo(target Target) bool {
	switch target {
	case TargetStats:
		return p.ExcludeFromStats
	default:
		return p.ExcludeFromHighlights
	}
}

// MatchesName reports case-insensitive substring containment against an
// activity name.
func (p TitleIgnorePattern) MatchesName(name string) bool {
	if p.Pattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(p.Pattern))
}

// Unit is the length unit a distance filter value is expressed in.
type Unit string

const (
	UnitKm Unit = "km"
	UnitMi Unit = "mi"
)

const milesPerKm = 0.621371

// Operator is the closed set of distance comparison modes. The tolerance
// modes differ deliberately: the legacy approximate operator is loose (10%),
// best-match is tighter (5%), and exact is an absolute 0.1 km band.
type Operator int

const (
	OpGreater Operator = iota
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpApprox    // "eq": within 10% of the target value
	OpBestMatch // "±": within 5% of the target value
	OpExact     // "=": within 0.1 km of the target value
)

var operatorNames = map[Operator]string{
	OpGreater:      "gt",
	OpGreaterEqual: "gte",
	OpLess:         "lt",
	OpLessEqual:    "lte",
	OpApprox:       "eq",
	OpBestMatch:    "±",
	OpExact:        "=",
}

// ParseOperator converts the settings wire form of an operator into its enum
// value.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown distance operator %q", s)
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// MarshalJSON encodes the operator in its settings wire form.
func (o Operator) MarshalJSON() ([]byte, error) {
	name, ok := operatorNames[o]
	if !ok {
		return nil, fmt.Errorf("unknown distance operator %d", int(o))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes the operator from its settings wire form.
func (o *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	op, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// DistanceFilter matches an activity distance against a target value with
// operator-specific tolerance.
type DistanceFilter struct {
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
	Unit     Unit     `json:"unit"`
}

// TargetKm returns the filter's target distance normalized to kilometers.
func (f DistanceFilter) TargetKm() float64 {
	if f.Unit == UnitMi {
		return f.Value / milesPerKm
	}
	return f.Value
}

// Matches reports whether distanceKm satisfies the filter.
func (f DistanceFilter) Matches(distanceKm float64) bool {
	target := f.TargetKm()
	switch f.Operator {
	case OpGreater:
		return distanceKm > target
	case OpGreaterEqual:
		return distanceKm >= target
	case OpLess:
		return distanceKm < target
	case OpLessEqual:
		return distanceKm <= target
	case OpApprox:
		return math.Abs(distanceKm-target) <= target*0.10
	case OpBestMatch:
		return math.Abs(distanceKm-target) <= target*0.05
	case OpExact:
		return math.Abs(distanceKm-target) <= 0.1
	default:
		return false
	}
}

// ActivityTypeFilter is a user-configured custom filter for one activity
// type. The distance and title axes are AND-ed; an empty list on either axis
// means no constraint on that axis.
type ActivityTypeFilter struct {
	ActivityType    ActivityType     `json:"activity_type"`
	DistanceFilters []DistanceFilter `json:"distance_filters"`
	TitlePatterns   []string         `json:"title_patterns"`
}

// VirtualExclusion carries the per-target flags for excluding a sport's
// virtual activities.
type VirtualExclusion struct {
	Stats      bool `json:"stats"`
	Highlights bool `json:"highlights"`
}

// For returns the flag for the given consumption target.
func (v VirtualExclusion) For(target Target) bool {
	if target == TargetStats {
		return v.Stats
	}
	return v.Highlights
}

// Settings is the explicit configuration value object consumed by the
// pipeline. It is read-only input on each call; the pipeline performs no
// persistence and reads no ambient state.
type Settings struct {
	ExcludedActivityTypes []ActivityType             `json:"excluded_activity_types"`
	ExcludeVirtual        map[Sport]VirtualExclusion `json:"exclude_virtual"`
	TitleIgnorePatterns   []TitleIgnorePattern       `json:"title_ignore_patterns"`
	ActivityFilters       []ActivityTypeFilter       `json:"activity_filters"`
	IncludeInHighlights   []ActivityType             `json:"include_in_highlights"`
	IncludeInStats        []ActivityType             `json:"include_in_stats"`
}

// FilterFor returns the configured custom filter for an activity type, if
// any.
func (s Settings) FilterFor(t ActivityType) (ActivityTypeFilter, bool) {
	for _, f := range s.ActivityFilters {
		if f.ActivityType == t {
			return f, true
		}
	}
	return ActivityTypeFilter{}, false
}
