package domain

const (
	MatchKindMatched   = "matched"
	MatchKindUnmatched = "unmatched"
	MatchKindAmbiguous = "ambiguous"
)

// ScoreParts 记录三个记号维度各自是否命中。
// 置信度不是单一概率，而是命中维度的组合：只用于排序/解释，不持久化。
type ScoreParts struct {
	Room bool
	Time bool
	Name bool
}

// Eligible 表示该谈话是文件的合格候选：room 与 time 必须同时命中。
// 姓名只是辅助证据，用于在多个 room+time 候选之间消歧。
func (s ScoreParts) Eligible() bool { return s.Room && s.Time }

// Total 返回命中维度数（0–3）。
func (s ScoreParts) Total() int {
	n := 0
	if s.Room {
		n++
	}
	if s.Time {
		n++
	}
	if s.Name {
		n++
	}
	return n
}

// MatchResult 是单个文件的匹配结论。
//
//   - matched：TalkIdx 指向 catalog 下标，Score 是命中维度
//   - unmatched：Reason 说明原因（例如没有 room+time 候选）
//   - ambiguous：Candidates 是并列候选的 catalog 下标（已排序，保证稳定）；
//     宁可 ambiguous，也不允许悄悄二选一
type MatchResult struct {
	File VideoFile

	Kind       string
	TalkIdx    int
	Candidates []int
	Score      ScoreParts
	Reason     string
}
