package tracker

// SelectNext picks the next backlog issue to execute. The choice is a
// pure function of the given list: five tiers, each deterministic, so
// re-running on the same snapshot always yields the same issue.
//
//  1. priority:critical, newest first.
//  2. task:analysis, oldest first.
//  3. human-suggestion, oldest first.
//  4. director-suggestion or strategy-suggestion, oldest first.
//  5. everything else, oldest first.
//
// Returns nil when the backlog is empty.
func SelectNext(backlog []Issue) *Issue {
	candidates := make([]*Issue, 0, len(backlog))
	for i := range backlog {
		if backlog[i].HasLabel(LabelBacklog) {
			candidates = append(candidates, &backlog[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if pick := newest(filter(candidates, func(i *Issue) bool {
		return i.HasLabel(LabelPriorityCritical)
	})); pick != nil {
		return pick
	}
	if pick := oldest(filter(candidates, func(i *Issue) bool {
		return i.HasLabel(LabelTaskAnalysis)
	})); pick != nil {
		return pick
	}
	if pick := oldest(filter(candidates, func(i *Issue) bool {
		return i.HasLabel(LabelHumanSuggestion)
	})); pick != nil {
		return pick
	}
	if pick := oldest(filter(candidates, func(i *Issue) bool {
		return i.HasLabel(LabelDirectorSuggestion) || i.HasLabel(LabelStrategySuggestion)
	})); pick != nil {
		return pick
	}
	return oldest(candidates)
}

func filter(in []*Issue, keep func(*Issue) bool) []*Issue {
	var out []*Issue
	for _, i := range in {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

// newest returns the most recently created issue; issue number breaks
// creation-time ties.
func newest(in []*Issue) *Issue {
	var best *Issue
	for _, i := range in {
		if best == nil ||
			i.CreatedAt.After(best.CreatedAt) ||
			(i.CreatedAt.Equal(best.CreatedAt) && i.Number > best.Number) {
			best = i
		}
	}
	return best
}

// oldest returns the earliest created issue; issue number breaks
// creation-time ties.
func oldest(in []*Issue) *Issue {
	var best *Issue
	for _, i := range in {
		if best == nil ||
			i.CreatedAt.Before(best.CreatedAt) ||
			(i.CreatedAt.Equal(best.CreatedAt) && i.Number < best.Number) {
			best = i
		}
	}
	return best
}
