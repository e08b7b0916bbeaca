package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"year":2024}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingPath, err, Code(err))
	}
}

func TestLoadEffective_ApplyCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"videos","year":2024,"apply":true}`))

	eff, err := LoadEffective(cwd, CLIArgs{
		Apply:    false,
		ApplySet: true, // --apply=false
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Apply != false {
		t.Fatalf("期望 apply=false，实际=%v", eff.Apply)
	}

	wantPath := filepath.Join(cwd, "videos")
	if eff.Path != wantPath {
		t.Fatalf("期望 path=%q，实际=%q", wantPath, eff.Path)
	}
}

func TestLoadEffective_YearFromTalksURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"),
		[]byte(`{"path":"p","talks_url":"https://pybay.org/speaking/talk-list-2024/"}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Year != 2024 {
		t.Fatalf("期望从 talks_url 推导 year=2024，实际=%d", eff.Year)
	}
}

func TestLoadEffective_TalksURLFromYear(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p","year":2025}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.TalksURL != "https://pybay.org/speaking/talk-list-2025/" {
		t.Fatalf("期望按模板展开 talks_url，实际=%q", eff.TalksURL)
	}
}

func TestLoadEffective_CLIYearOverridesConfig(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p","year":2024}`))

	eff, err := LoadEffective(cwd, CLIArgs{Year: 2025, YearSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Year != 2025 {
		t.Fatalf("期望 CLI 覆盖 year=2025，实际=%d", eff.Year)
	}
}

func TestLoadEffective_MissingYearAndURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p"}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_CLIPath_ConfigOptional(t *testing.T) {
	cwd := t.TempDir()
	root := filepath.Join(cwd, "root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	eff, err := LoadEffective(cwd, CLIArgs{
		Path: root,
		Year: 2024, YearSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != root {
		t.Fatalf("期望 path=%q，实际=%q", root, eff.Path)
	}
	if eff.Workers != DefaultWorkers {
		t.Fatalf("期望 workers=%d，实际=%d", DefaultWorkers, eff.Workers)
	}
	if eff.FuzzyMinConfidence != DefaultFuzzyMinConfidence {
		t.Fatalf("期望 fuzzy_min_confidence=%v，实际=%v", DefaultFuzzyMinConfidence, eff.FuzzyMinConfidence)
	}
}

func TestLoadEffective_WorkersClamped(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p","year":2024,"workers":99}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Workers != 16 {
		t.Fatalf("期望 workers 截断到 16，实际=%d", eff.Workers)
	}
}

func TestLoadEffective_FuzzyConfidenceRange(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p","year":2024,"fuzzy_min_confidence":1.5}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_CLIPath_InvalidConfig(t *testing.T) {
	cwd := t.TempDir()
	root := filepath.Join(cwd, "root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(root, "pvmc.json"), []byte(`{`))

	_, err := LoadEffective(cwd, CLIArgs{Path: root})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_DownloadProxyRequiresProxyURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p","year":2024,"download_proxy":true}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_InvalidProxyURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "pvmc.json"), []byte(`{"path":"p","year":2024,"proxy":{"url":"http://[::1"}}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
