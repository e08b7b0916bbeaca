// Package match 把扫描到的视频文件与权威日程做一对一指派。
// 核心约束：要么得到唯一指派，要么明确报告 unmatched/ambiguous；
// 宁可交给人工复核，也不允许悄悄猜一个。
package match

import (
	"sort"
	"strings"

	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/speaker"
	"github.com/pybay-video/PVMC/internal/timeofday"
	"github.com/pybay-video/PVMC/internal/token"
)

// Match 计算 catalog 与 files 的最优指派。
//
// 打分：room 大小写不敏感相等 +1；time 规范化后相等 +1；任一讲者命中
// 姓名片段 +1。合格候选必须 room 与 time 同时命中；姓名只用于在多个
// room+time 候选之间消歧。
//
// 选择策略：
//   - 恰好一个合格候选 => matched
//   - 零个 => unmatched（no room+time match）
//   - 多个 => 先按总分取最高（姓名命中打破平局）；仍并列 => ambiguous
//   - 已被前面文件认领的谈话不可重复认领：若该文件没有其他未认领的
//     合格候选，则对该认领冲突报 ambiguous
//
// 结果确定性：文件按 RelPath（空则 Base）排序后处理，候选列表升序，
// 与输入枚举顺序无关。noVideo 是没有任何文件指派的 catalog 下标
// （谈话侧的 unmatched，与文件侧区分报告）。
func Match(catalog []domain.TalkRecord, files []domain.VideoFile) (results []domain.MatchResult, noVideo []int) {
	ordered := make([]domain.VideoFile, len(files))
	copy(ordered, files)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := sortName(ordered[i]), sortName(ordered[j])
		return a < b
	})

	results = make([]domain.MatchResult, 0, len(ordered))
	claimed := make(map[int]bool, len(catalog))

	for _, f := range ordered {
		results = append(results, matchOne(catalog, f, claimed))
	}

	for i := range catalog {
		if !claimed[i] {
			noVideo = append(noVideo, i)
		}
	}
	return results, noVideo
}

func matchOne(catalog []domain.TalkRecord, f domain.VideoFile, claimed map[int]bool) domain.MatchResult {
	tk := token.Extract(f.Base)

	fileTime := ""
	if tk.Time != "" {
		if t, err := timeofday.Normalize(tk.Time); err == nil {
			// 规范化失败就当时间记号缺失，不是硬失败。
			fileTime = t
		}
	}

	var eligible []int
	scores := make(map[int]domain.ScoreParts)
	for i := range catalog {
		s := score(catalog[i], tk, fileTime)
		if s.Eligible() {
			eligible = append(eligible, i)
			scores[i] = s
		}
	}

	if len(eligible) == 0 {
		return domain.MatchResult{
			File:   f,
			Kind:   domain.MatchKindUnmatched,
			Reason: "没有 room+time 同时命中的候选谈话",
		}
	}

	// 已认领的谈话不可再指派：只有存在未认领候选时才继续收窄。
	pool := make([]int, 0, len(eligible))
	for _, i := range eligible {
		if !claimed[i] {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return domain.MatchResult{
			File:       f,
			Kind:       domain.MatchKindAmbiguous,
			Candidates: eligible,
			Reason:     "候选谈话已被其他文件认领",
		}
	}

	var best []int
	bestScore := -1
	for _, i := range pool {
		if t := scores[i].Total(); t > bestScore {
			bestScore = t
			best = []int{i}
		} else if t == bestScore {
			best = append(best, i)
		}
	}

	if len(best) > 1 {
		return domain.MatchResult{
			File:       f,
			Kind:       domain.MatchKindAmbiguous,
			Candidates: best,
			Reason:     "多个候选谈话得分并列",
		}
	}

	idx := best[0]
	claimed[idx] = true
	return domain.MatchResult{
		File:    f,
		Kind:    domain.MatchKindMatched,
		TalkIdx: idx,
		Score:   scores[idx],
	}
}

func score(t domain.TalkRecord, tk domain.FilenameTokens, fileTime string) domain.ScoreParts {
	return domain.ScoreParts{
		Room: tk.Room != "" && strings.EqualFold(tk.Room, t.Room),
		Time: fileTime != "" && fileTime == t.Start,
		Name: tk.Name != "" && speaker.AnyMatches(t.Speakers, tk.Name),
	}
}

func sortName(f domain.VideoFile) string {
	if f.RelPath != "" {
		return f.RelPath
	}
	return f.Base + f.Ext
}
