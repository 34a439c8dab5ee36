package rules

import (
	"sort"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// MergeProblemScopes unions the precise and general scopes, de-duplicated by
// ID. Precise entries come first; each part is ordered by code, then ID.
func MergeProblemScopes(precise, general []*entity.ProblemType) []*entity.ProblemType {
	seen := make(map[int64]bool, len(precise)+len(general))
	result := make([]*entity.ProblemType, 0, len(precise)+len(general))

	for _, part := range [][]*entity.ProblemType{sortedByCode(precise), sortedByCode(general)} {
		for _, pt := range part {
			if pt == nil || seen[pt.ID] {
				continue
			}
			seen[pt.ID] = true
			result = append(result, pt)
		}
	}
	return result
}

func sortedByCode(in []*entity.ProblemType) []*entity.ProblemType {
	out := make([]*entity.ProblemType, 0, len(in))
	for _, pt := range in {
		if pt != nil {
			out = append(out, pt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProblemTypeIDs extracts the ids in order
func ProblemTypeIDs(types []*entity.ProblemType) []int64 {
	ids := make([]int64, 0, len(types))
	for _, pt := range types {
		ids = append(ids, pt.ID)
	}
	return ids
}

// ContainsProblemType reports whether id is part of the set
func ContainsProblemType(types []*entity.ProblemType, id int64) bool {
	for _, pt := range types {
		if pt.ID == id {
			return true
		}
	}
	return false
}
