package app

import (
	"errors"
	"sort"

	"github.com/John-Robertt/autorename/internal/domain"
)

// ErrEmptyCandidateSet 表示调用方违反约定：没有候选时不应进入选择阶段。
var ErrEmptyCandidateSet = errors.New("候选时间集合为空")

// SelectOldest 选出最早的候选时间，并记录所有与最小值相等的来源。
//
// - DateOnly 候选已带哨兵时刻，可与 DateTime 直接比较
// - 平手时只要有一个 DateTime 胜出者，结果即为 DateTime
// - Sources 去重并按字典序排序，保证输出稳定
func SelectOldest(cands []domain.TimeCandidate) (domain.ResolvedTime, error) {
	if len(cands) == 0 {
		return domain.ResolvedTime{}, ErrEmptyCandidateSet
	}

	oldest := cands[0].Timestamp
	for _, c := range cands[1:] {
		if c.Timestamp.Before(oldest) {
			oldest = c.Timestamp
		}
	}

	out := domain.ResolvedTime{Timestamp: oldest, Precision: domain.DateOnly}
	seen := make(map[domain.Source]struct{}, len(cands))
	for _, c := range cands {
		if !c.Timestamp.Equal(oldest) {
			continue
		}
		if c.Precision == domain.DateTime {
			out.Precision = domain.DateTime
		}
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		out.Sources = append(out.Sources, c.Source)
	}
	sort.Slice(out.Sources, func(i, j int) bool { return out.Sources[i] < out.Sources[j] })
	return out, nil
}
