package planner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pybay-video/PVMC/internal/domain"
)

func talkFixture() []domain.TalkRecord {
	return []domain.TalkRecord{
		{
			Title:    "Scaling Open Source",
			Speakers: []domain.Speaker{{First: "Zac", Last: "Hatfield-Dodds"}},
			Room:     "Fisher West",
			Start:    "1000",
			Year:     2024,
		},
	}
}

func videoAt(t *testing.T, dir, name string) domain.VideoFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	ext := strings.ToLower(filepath.Ext(name))
	return domain.VideoFile{
		AbsPath: path,
		RelPath: name,
		Base:    strings.TrimSuffix(name, filepath.Ext(name)),
		Ext:     ext,
	}
}

func TestBuild_MatchedGetsPublicationName(t *testing.T) {
	dir := t.TempDir()
	f := videoAt(t, dir, "Fisher - 1000 - Zac - Scaling.mp4")

	plan := Build(talkFixture(), []domain.MatchResult{
		{File: f, Kind: domain.MatchKindMatched, TalkIdx: 0},
	})
	if len(plan.Failures) != 0 {
		t.Fatalf("不期望失败：%+v", plan.Failures)
	}
	if len(plan.Moves) != 1 {
		t.Fatalf("期望 1 个动作，实际 %d", len(plan.Moves))
	}
	want := filepath.Join(dir, "Scaling Open Source — Zac Hatfield-Dodds (PyBay 2024).mp4")
	if plan.Moves[0].DstAbs != want {
		t.Fatalf("期望 dst=%q，实际=%q", want, plan.Moves[0].DstAbs)
	}
	if plan.Moves[0].TalkIdx != 0 {
		t.Fatalf("期望 TalkIdx=0，实际=%d", plan.Moves[0].TalkIdx)
	}
}

func TestBuild_UnmatchedGetsReviewPrefix(t *testing.T) {
	dir := t.TempDir()
	f := videoAt(t, dir, "randomfile.mp4")

	plan := Build(nil, []domain.MatchResult{
		{File: f, Kind: domain.MatchKindUnmatched},
	})
	if len(plan.Moves) != 1 {
		t.Fatalf("期望 1 个动作，实际 %d", len(plan.Moves))
	}
	want := filepath.Join(dir, "![REVIEW_NEEDED]_randomfile.mp4")
	if plan.Moves[0].DstAbs != want {
		t.Fatalf("期望 dst=%q，实际=%q", want, plan.Moves[0].DstAbs)
	}
	if plan.Moves[0].TalkIdx != -1 {
		t.Fatalf("复核动作的 TalkIdx 应为 -1，实际=%d", plan.Moves[0].TalkIdx)
	}
}

func TestBuild_DuplicateTargetConflicts(t *testing.T) {
	dir := t.TempDir()
	a := videoAt(t, dir, "a.mp4")
	b := videoAt(t, dir, "b.mp4")

	// 两个文件匹配到同一条谈话 => 指向同一目标名。
	plan := Build(talkFixture(), []domain.MatchResult{
		{File: a, Kind: domain.MatchKindMatched, TalkIdx: 0},
		{File: b, Kind: domain.MatchKindMatched, TalkIdx: 0},
	})
	if len(plan.Moves) != 1 {
		t.Fatalf("期望只保留 1 个动作，实际 %d", len(plan.Moves))
	}
	if len(plan.Failures) != 1 {
		t.Fatalf("期望 1 个冲突，实际 %d", len(plan.Failures))
	}
	if plan.Failures[0].ErrorCode != domain.ErrCodeTargetConflict {
		t.Fatalf("期望 %q，实际=%q", domain.ErrCodeTargetConflict, plan.Failures[0].ErrorCode)
	}
	// 按 RelPath 排序：a 先到先得，b 冲突。
	if plan.Failures[0].File.Base != "b" {
		t.Fatalf("期望 b 冲突，实际=%q", plan.Failures[0].File.Base)
	}
}

func TestBuild_ExistingTargetNeverOverwritten(t *testing.T) {
	dir := t.TempDir()
	f := videoAt(t, dir, "Fisher - 1000 - Zac - Scaling.mp4")
	// 目标名已在磁盘上存在。
	videoAt(t, dir, "Scaling Open Source — Zac Hatfield-Dodds (PyBay 2024).mp4")

	plan := Build(talkFixture(), []domain.MatchResult{
		{File: f, Kind: domain.MatchKindMatched, TalkIdx: 0},
	})
	if len(plan.Moves) != 0 {
		t.Fatalf("不期望任何动作，实际 %d", len(plan.Moves))
	}
	if len(plan.Failures) != 1 || plan.Failures[0].ErrorCode != domain.ErrCodeTargetConflict {
		t.Fatalf("期望 target_conflict，实际：%+v", plan.Failures)
	}
}

func TestLegacyFixes(t *testing.T) {
	dir := t.TempDir()
	videoAt(t, dir, "Keynote — Guido van Rossum (2016).mp4")
	videoAt(t, dir, "Keynote — Guido van Rossum (PyBay 2024).mp4")

	moves, err := LegacyFixes(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("期望 1 个修正动作，实际 %d", len(moves))
	}
	want := filepath.Join(dir, "Keynote — Guido van Rossum (PyBay 2016).mp4")
	if moves[0].DstAbs != want {
		t.Fatalf("期望 dst=%q，实际=%q", want, moves[0].DstAbs)
	}
}
