package proximity

import (
	"sort"

	"github.com/samber/lo"
)

// Classification holds the indices, into the analyzed detection slice, of the people involved in
// at least one violation. An index appears in at most one of the two sets.
type Classification struct {
	Serious  []int
	Abnormal []int
}

func newClassification(serious, abnormal map[int]struct{}) Classification {
	for idx := range serious {
		delete(abnormal, idx)
	}
	return Classification{Serious: sortedKeys(serious), Abnormal: sortedKeys(abnormal)}
}

func sortedKeys(set map[int]struct{}) []int {
	keys := lo.Keys(set)
	sort.Ints(keys)
	return keys
}

// IsSerious returns whether the detection at idx is part of a serious violation.
func (c Classification) IsSerious(idx int) bool {
	return lo.Contains(c.Serious, idx)
}

// IsAbnormal returns whether the detection at idx is part of an abnormal violation only.
func (c Classification) IsAbnormal(idx int) bool {
	return lo.Contains(c.Abnormal, idx)
}

// SeriousCount is the number of people in serious violation.
func (c Classification) SeriousCount() int {
	return len(c.Serious)
}

// AbnormalCount is the number of people in abnormal violation.
func (c Classification) AbnormalCount() int {
	return len(c.Abnormal)
}
