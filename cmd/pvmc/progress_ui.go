package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pybay-video/PVMC/internal/app/run"
	"github.com/pybay-video/PVMC/internal/config"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (不重命名/不写报告)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] PVMC run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  year: %d\n", eff.Year)
	if strings.TrimSpace(eff.TalksURL) != "" {
		fmt.Fprintf(p.w, "  talks_url: %s\n", truncate(eff.TalksURL, 120))
	}
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  exclude_dirs: %s\n", formatStringListJSON(eff.ExcludeDirs))

	if eff.Apply {
		fmt.Fprintln(p.w, "输出:")
		fmt.Fprintf(p.w, "  report: %s\n", filepath.Join(eff.Path, run.ReportFileName))
	}
	fmt.Fprintln(p.w)
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "catalog":
		fmt.Fprintf(p.w, "目录: talks=%d source=%s (%s)\n",
			intField(fields, "talks"), stringField(fields, "source"), formatShortDuration(dur),
		)
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n",
			intField(fields, "files"), formatShortDuration(dur),
		)
	case "match":
		fmt.Fprintf(p.w, "匹配: matched=%d review=%d ambiguous=%d no_video=%d (%s)\n",
			intField(fields, "matched"),
			intField(fields, "review"),
			intField(fields, "ambiguous"),
			intField(fields, "no_video"),
			formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: moves=%d conflicts=%d (%s)\n",
			intField(fields, "moves"), intField(fields, "conflicts"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnRenameDone(idx, total int, src, dst string, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s：%v (%s)\n",
			idx, total, filepath.Base(src), err, formatShortDuration(dur),
		)
		return
	}
	fmt.Fprintf(p.w, "[%d/%d] OK   %s -> %s (%s)\n",
		idx, total, filepath.Base(src), filepath.Base(dst), formatShortDuration(dur),
	)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
