package match

import (
	"testing"

	"github.com/pybay-video/PVMC/internal/domain"
)

func talk(room, start, title string, sps ...domain.Speaker) domain.TalkRecord {
	return domain.TalkRecord{Title: title, Room: room, Start: start, Speakers: sps, Year: 2025}
}

func video(base string) domain.VideoFile {
	return domain.VideoFile{Base: base, Ext: ".mp4", RelPath: base + ".mp4"}
}

func TestMatch_SingleExactMatch(t *testing.T) {
	catalog := []domain.TalkRecord{
		talk("Robertson", "1000", "Welcome Remarks", domain.Speaker{First: "Chris", Last: "Brousseau"}),
	}
	files := []domain.VideoFile{video("Robertson - 1000 - Brousseau - Welcome Remarks")}

	results, noVideo := Match(catalog, files)
	if len(results) != 1 {
		t.Fatalf("期望 1 条结果，实际 %d", len(results))
	}
	r := results[0]
	if r.Kind != domain.MatchKindMatched || r.TalkIdx != 0 {
		t.Fatalf("期望 matched 到下标 0，实际 %+v", r)
	}
	if !r.Score.Room || !r.Score.Time || !r.Score.Name {
		t.Fatalf("期望三个维度全部命中：%+v", r.Score)
	}
	if len(noVideo) != 0 {
		t.Fatalf("不期望 no_video 条目：%v", noVideo)
	}
}

func TestMatch_NoRoomTimeCandidate(t *testing.T) {
	catalog := []domain.TalkRecord{talk("Robertson", "1000", "Welcome Remarks")}
	files := []domain.VideoFile{video("randomfile")}

	results, noVideo := Match(catalog, files)
	if results[0].Kind != domain.MatchKindUnmatched {
		t.Fatalf("期望 unmatched，实际 %+v", results[0])
	}
	// 谈话侧也必须可见：没有视频的谈话不许被吞掉。
	if len(noVideo) != 1 || noVideo[0] != 0 {
		t.Fatalf("期望谈话 0 报告为 no_video，实际 %v", noVideo)
	}
}

func TestMatch_NameBreaksTie(t *testing.T) {
	// 同 room 同 time 的重复条目（日程小改遗留）：姓名命中打破平局。
	catalog := []domain.TalkRecord{
		talk("Fisher", "1430", "Talk A", domain.Speaker{First: "Fabio", Last: "Pliger"}),
		talk("Fisher", "1430", "Talk B", domain.Speaker{First: "Chris", Last: "Laffra"}),
	}
	files := []domain.VideoFile{video("Fisher - 2:30 pm - Laffra - Talk B")}

	results, _ := Match(catalog, files)
	if results[0].Kind != domain.MatchKindMatched || results[0].TalkIdx != 1 {
		t.Fatalf("期望姓名命中打破平局选中下标 1，实际 %+v", results[0])
	}
}

func TestMatch_TieWithoutNameIsAmbiguous(t *testing.T) {
	catalog := []domain.TalkRecord{
		talk("Fisher", "1430", "Talk A", domain.Speaker{Last: "Pliger"}),
		talk("Fisher", "1430", "Talk B", domain.Speaker{Last: "Laffra"}),
	}
	// 姓名片段缺失：两个候选并列，绝不允许随机挑一个。
	files := []domain.VideoFile{video("Fisher - 1430")}

	results, _ := Match(catalog, files)
	r := results[0]
	if r.Kind != domain.MatchKindAmbiguous {
		t.Fatalf("期望 ambiguous，实际 %+v", r)
	}
	if len(r.Candidates) != 2 || r.Candidates[0] != 0 || r.Candidates[1] != 1 {
		t.Fatalf("期望候选 [0 1]，实际 %v", r.Candidates)
	}
}

func TestMatch_ClaimConflictIsAmbiguous(t *testing.T) {
	// 两个文件都命中同一谈话的 room+time：第二个必须报 ambiguous，
	// 而不是悄悄顶替或再次指派。
	catalog := []domain.TalkRecord{
		talk("Robertson", "1000", "Welcome Remarks", domain.Speaker{Last: "Brousseau"}),
		talk("Fisher", "1100", "Other Talk", domain.Speaker{Last: "Laffra"}),
	}
	files := []domain.VideoFile{
		video("Robertson - 1000 - Brousseau - Welcome Remarks"),
		video("Robertson - 1000 - Brousseau - Welcome Remarks take 2"),
	}

	results, noVideo := Match(catalog, files)

	var matched, ambiguous int
	for _, r := range results {
		switch r.Kind {
		case domain.MatchKindMatched:
			matched++
		case domain.MatchKindAmbiguous:
			ambiguous++
			if len(r.Candidates) != 1 || r.Candidates[0] != 0 {
				t.Fatalf("期望冲突候选 [0]，实际 %v", r.Candidates)
			}
		}
	}
	if matched != 1 || ambiguous != 1 {
		t.Fatalf("期望 1 matched + 1 ambiguous，实际 matched=%d ambiguous=%d", matched, ambiguous)
	}
	if len(noVideo) != 1 || noVideo[0] != 1 {
		t.Fatalf("期望谈话 1 报告为 no_video，实际 %v", noVideo)
	}
}

func TestMatch_DeterministicAcrossEnumerationOrder(t *testing.T) {
	catalog := []domain.TalkRecord{
		talk("Robertson", "1000", "A", domain.Speaker{Last: "Brousseau"}),
		talk("Fisher", "1430", "B", domain.Speaker{Last: "Laffra"}),
	}
	f1 := video("Robertson - 1000 - Brousseau - A")
	f2 := video("Fisher - 2:30 pm - Laffra - B")

	r1, _ := Match(catalog, []domain.VideoFile{f1, f2})
	r2, _ := Match(catalog, []domain.VideoFile{f2, f1})

	if len(r1) != len(r2) {
		t.Fatalf("结果数不一致")
	}
	for i := range r1 {
		if r1[i].File.RelPath != r2[i].File.RelPath || r1[i].TalkIdx != r2[i].TalkIdx || r1[i].Kind != r2[i].Kind {
			t.Fatalf("结果与输入枚举顺序相关：%+v vs %+v", r1[i], r2[i])
		}
	}
}

func TestMatch_TimeNormalizedEquality(t *testing.T) {
	catalog := []domain.TalkRecord{
		talk("Robertson", "1000", "Welcome", domain.Speaker{Last: "Brousseau"}),
	}
	// 文件名用 12 小时写法，catalog 是规范化 HHMM：必须等价。
	files := []domain.VideoFile{video("Robertson - 10:00 am - Brousseau - Welcome")}

	results, _ := Match(catalog, files)
	if results[0].Kind != domain.MatchKindMatched {
		t.Fatalf("期望时间规范化后命中，实际 %+v", results[0])
	}
}
