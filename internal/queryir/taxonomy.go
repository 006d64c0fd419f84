package queryir

import "fmt"

// ParseMatchStrategy parses a configured strategy name. Empty means exists.
func ParseMatchStrategy(s string) (MatchStrategy, error) {
	switch MatchStrategy(s) {
	case "", MatchExists:
		return MatchExists, nil
	case MatchGroupCount:
		return MatchGroupCount, nil
	default:
		return "", fmt.Errorf("unknown descriptor strategy %q (want %q or %q)", s, MatchExists, MatchGroupCount)
	}
}

// matchDescriptors builds the taxonomy condition for the requested
// descriptor set. Each requested descriptor is one AND group; with
// includeDescendants a group is satisfied by the descriptor or any of its
// descendants (OR inside the group).
//
// Returns nil when no descriptors are requested.
func matchDescriptors(ids []int64, includeDescendants bool, strategy MatchStrategy) Condition {
	groups := NormalizeIDs(ids)
	if len(groups) == 0 {
		return nil
	}
	if strategy == "" {
		strategy = MatchExists
	}
	return DescriptorMatch{
		DescriptorIDs:      groups,
		IncludeDescendants: includeDescendants,
		Strategy:           strategy,
	}
}
