package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pybay-video/PVMC/internal/catalog"
	"github.com/pybay-video/PVMC/internal/config"
	"github.com/pybay-video/PVMC/internal/domain"
)

const catalogJSON = `[
  {
    "talk_title": "Scaling Open Source",
    "speakers": [{"firstname": "Zac", "lastname": "Hatfield-Dodds"}],
    "room": "Fisher West",
    "start_time": "10:00 am",
    "id": "1"
  },
  {
    "talk_title": "Async Python",
    "speakers": [{"firstname": "Lina", "lastname": "Muñoz"}],
    "room": "Robertson 1",
    "start_time": "2:15 pm",
    "id": "2"
  }
]
`

func seedRoot(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, catalog.FileName(2024)), []byte(catalogJSON), 0o644); err != nil {
		t.Fatalf("写入目录文件失败：%v", err)
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(root, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("写入视频失败：%v", err)
		}
	}
	return root
}

func effFor(root string, apply bool) config.EffectiveConfig {
	return config.EffectiveConfig{
		Path:     root,
		TalksURL: "https://pybay.org/speaking/talk-list-2024/",
		Year:     2024,
		Apply:    apply,
		Workers:  1,
	}
}

func TestExecute_DryRun_NoWrites(t *testing.T) {
	root := seedRoot(t,
		"Fisher West - 1000 - Zac - Scaling.mp4",
		"randomfile.mp4",
	)

	rr := Execute(context.Background(), effFor(root, false))

	if !rr.DryRun {
		t.Fatalf("期望 dry_run=true")
	}
	if rr.Summary.Matched != 1 || rr.Summary.Review != 1 {
		t.Fatalf("期望 matched=1 review=1，实际 %+v", rr.Summary)
	}
	// no_video：第二条谈话没有任何文件命中。
	if rr.Summary.NoVideo != 1 {
		t.Fatalf("期望 no_video=1，实际 %+v", rr.Summary)
	}

	// dry-run：不改名、不写报告。
	if _, err := os.Stat(filepath.Join(root, "Fisher West - 1000 - Zac - Scaling.mp4")); err != nil {
		t.Fatalf("dry-run 不应移动源文件：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ReportFileName)); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应写报告，但 Stat err=%v", err)
	}

	// matched item 的文件计划应给出成品名。
	for _, it := range rr.Items {
		if it.Status != domain.StatusMatched {
			continue
		}
		if len(it.Files) != 1 || it.Files[0].Status != domain.FileStatusPlanned {
			t.Fatalf("期望 planned 文件，实际：%+v", it.Files)
		}
		want := "Scaling Open Source — Zac Hatfield-Dodds (PyBay 2024).mp4"
		if it.Files[0].Dst != want {
			t.Fatalf("期望 dst=%q，实际=%q", want, it.Files[0].Dst)
		}
	}
}

func TestExecute_Apply_RenamesAndWritesReport(t *testing.T) {
	root := seedRoot(t,
		"Fisher West - 1000 - Zac - Scaling.mp4",
		"randomfile.mp4",
	)

	rr := Execute(context.Background(), effFor(root, true))

	want := filepath.Join(root, "Scaling Open Source — Zac Hatfield-Dodds (PyBay 2024).mp4")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("期望成品文件存在：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "![REVIEW_NEEDED]_randomfile.mp4")); err != nil {
		t.Fatalf("期望复核文件存在：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(root, ReportFileName))
	if err != nil {
		t.Fatalf("期望报告落盘：%v", err)
	}
	var onDisk domain.RunReport
	if err := json.Unmarshal(b, &onDisk); err != nil {
		t.Fatalf("报告不是合法 JSON：%v", err)
	}
	if onDisk.Summary != rr.Summary {
		t.Fatalf("落盘报告与返回值不一致：%+v vs %+v", onDisk.Summary, rr.Summary)
	}

	for _, it := range rr.Items {
		if it.Status == domain.StatusMatched && it.Files[0].Status != domain.FileStatusRenamed {
			t.Fatalf("期望 matched 文件状态 renamed，实际=%q", it.Files[0].Status)
		}
	}
}

func TestExecute_Apply_ConflictNeverOverwrites(t *testing.T) {
	root := seedRoot(t,
		"Fisher West - 1000 - Zac - Scaling.mp4",
	)
	// 目标成品名已被占用。
	occupied := filepath.Join(root, "Scaling Open Source — Zac Hatfield-Dodds (PyBay 2024).mp4")
	if err := os.WriteFile(occupied, []byte("keep"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	rr := Execute(context.Background(), effFor(root, true))

	var failed *domain.ItemResult
	for i := range rr.Items {
		if rr.Items[i].Status == domain.StatusFailed {
			failed = &rr.Items[i]
		}
	}
	if failed == nil || failed.ErrorCode != domain.ErrCodeTargetConflict {
		t.Fatalf("期望 target_conflict 失败条目，实际：%+v", rr.Items)
	}

	// 占位文件内容保持不变。
	b, err := os.ReadFile(occupied)
	if err != nil || string(b) != "keep" {
		t.Fatalf("已有文件被覆盖：%q err=%v", b, err)
	}
	// 源文件原地不动。
	if _, err := os.Stat(filepath.Join(root, "Fisher West - 1000 - Zac - Scaling.mp4")); err != nil {
		t.Fatalf("冲突时源文件不应移动：%v", err)
	}
}

func TestExecute_InvalidCatalogIsFatal(t *testing.T) {
	root := t.TempDir()
	bad := `[{"talk_title":"Broken","room":"","start_time":"1000"}]`
	if err := os.WriteFile(filepath.Join(root, catalog.FileName(2024)), []byte(bad), 0o644); err != nil {
		t.Fatalf("写入目录文件失败：%v", err)
	}

	rr := Execute(context.Background(), effFor(root, false))
	if rr.Summary.Failed != 1 {
		t.Fatalf("期望 1 条失败，实际 %+v", rr.Summary)
	}
	if rr.Items[len(rr.Items)-1].ErrorCode != domain.ErrCodeCatalogInvalid {
		t.Fatalf("期望 catalog_invalid，实际：%+v", rr.Items)
	}
}

func TestExecute_Determinism(t *testing.T) {
	root := seedRoot(t,
		"Fisher West - 1000 - Zac - Scaling.mp4",
		"Robertson 1 - 1415 - Lina - Async.mp4",
		"randomfile.mp4",
	)

	a := Execute(context.Background(), effFor(root, false))
	b := Execute(context.Background(), effFor(root, false))

	ja, _ := json.Marshal(a.Items)
	jb, _ := json.Marshal(b.Items)
	if string(ja) != string(jb) {
		t.Fatalf("两次 dry-run 的 items 不一致：\n%s\n%s", ja, jb)
	}
}
