package lending

import (
	"slices"

	"github.com/erazemk/nycklar/internal/model"
)

// RemovalPlan splits the keys to be removed from a bundle into those that
// can go right away and those out on loan, which need confirmation.
type RemovalPlan struct {
	Safe []int64 `json:"safe_ids"`
	Warn []int64 `json:"warn_ids"`
}

// NeedsConfirmation reports whether any key in the plan is out on loan.
func (p RemovalPlan) NeedsConfirmation() bool {
	return len(p.Warn) > 0
}

// PlanRemoval classifies each target id against the given key snapshot.
// Targets with an active loan are warned about; everything else, including
// ids missing from the snapshot, is safe. Both lists are sorted and free of
// duplicates. Nothing is removed here.
func PlanRemoval(targetIDs []int64, keys []model.Key) RemovalPlan {
	loaned := make(map[int64]bool)
	for _, k := range keys {
		if ActiveLoan(k.Loans) != nil {
			loaned[k.ID] = true
		}
	}

	plan := RemovalPlan{Safe: []int64{}, Warn: []int64{}}
	for _, id := range dedupe(targetIDs) {
		if loaned[id] {
			plan.Warn = append(plan.Warn, id)
		} else {
			plan.Safe = append(plan.Safe, id)
		}
	}
	return plan
}

// PlanAddition returns the bundle's ids with added appended. Ids already
// present keep their position.
func PlanAddition(current, added []int64) []int64 {
	seen := make(map[int64]bool, len(current)+len(added))
	out := make([]int64, 0, len(current)+len(added))
	for _, ids := range [][]int64{current, added} {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
