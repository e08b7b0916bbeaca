package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pybay-video/PVMC/internal/app/planner"
	"github.com/pybay-video/PVMC/internal/app/run"
	"github.com/pybay-video/PVMC/internal/catalog"
	"github.com/pybay-video/PVMC/internal/config"
	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/drive"
	"github.com/pybay-video/PVMC/internal/infra/fsx"
	"github.com/pybay-video/PVMC/internal/infra/httpx"
	"github.com/pybay-video/PVMC/internal/pyvideo"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "run":
		code = runCmd(args[1:])
	case "fetch":
		code = fetchCmd(args[1:])
	case "convert":
		code = convertCmd(args[1:])
	case "fixyears":
		code = fixYearsCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ca, err := parseCommonArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, ca.cli())
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, ca, err))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, obs)

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 && rr.Summary.Ambiguous == 0 && rr.Summary.Review == 0 {
		return 0
	}
	return 1
}

func fetchCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printFetchUsage()
			return 0
		}
	}

	ca, extra, err := parseArgsWith(args, "--folder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printFetchUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.cli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误：%v\n", err)
		return 1
	}

	folder := eff.DriveFolder
	if v, ok := extra["--folder"]; ok {
		folder = v
	}
	folderID := drive.ExtractFolderID(folder)
	if folderID == "" {
		fmt.Fprintln(os.Stderr, "缺少 Drive 文件夹：用 --folder 或配置 drive_folder 指定")
		return 2
	}

	hc, err := httpx.NewDownloadClient(eff.ProxyURL, eff.DownloadProxy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "构造下载客户端失败：%v\n", err)
		return 1
	}
	client := drive.NewClient(hc)

	ctx := context.Background()
	files, err := client.ListVideos(ctx, folderID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "列举 Drive 文件失败：%v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Drive 文件夹 %s：共 %d 个视频，下载到 %s（workers=%d）\n",
		folderID, len(files), eff.Path, eff.Workers)

	started := time.Now()
	results := client.DownloadAll(ctx, files, eff.Path, eff.Workers, func(done, total int, r drive.Result) {
		switch r.Status {
		case drive.ResultSkipped:
			fmt.Fprintf(os.Stderr, "[%d/%d] SKIP %s（本地已完整）\n", done, total, r.File.Name)
		case drive.ResultFailed:
			fmt.Fprintf(os.Stderr, "[%d/%d] FAIL %s：%v\n", done, total, r.File.Name, r.Err)
		default:
			fmt.Fprintf(os.Stderr, "[%d/%d] OK   %s（%s）\n", done, total, r.File.Name, formatBytes(r.File.Size))
		}
	})

	var ok, skip, fail int
	for _, r := range results {
		switch r.Status {
		case drive.ResultDownloaded:
			ok++
		case drive.ResultSkipped:
			skip++
		case drive.ResultFailed:
			fail++
		}
	}
	fmt.Fprintf(os.Stderr, "完成：downloaded=%d skipped=%d failed=%d elapsed=%s\n",
		ok, skip, fail, formatElapsed(time.Since(started)))
	if fail > 0 {
		return 1
	}
	return 0
}

func convertCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printConvertUsage()
			return 0
		}
	}

	ca, extra, err := parseArgsWith(args, "--info-dir", "--out")
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printConvertUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.cli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误：%v\n", err)
		return 1
	}

	infoDir := filepath.Join(eff.Path, "_yt_info")
	if v, ok := extra["--info-dir"]; ok {
		infoDir = v
	}
	outDir := filepath.Join(eff.Path, "_pyvideo")
	if v, ok := extra["--out"]; ok {
		outDir = v
	}

	// 目录只读：convert 从不回写谈话数据。
	talks, found, err := catalog.New(eff.Path, true).Load(eff.Year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取谈话目录失败：%v\n", err)
		return 1
	}
	if !found {
		fmt.Fprintf(os.Stderr, "提示：%s 下没有 %d 年的谈话目录，讲者解析只能靠标题拆解\n", eff.Path, eff.Year)
	}

	sum, err := pyvideo.Convert(infoDir, outDir, pyvideo.NewConference(eff.Year), talks, eff.FuzzyMinConfidence)
	if err != nil {
		fmt.Fprintf(os.Stderr, "转换失败：%v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "完成：total=%d resolved=%d needs_review=%d out=%s\n",
		sum.Total, sum.Resolved, len(sum.NeedsReview), outDir)
	for _, slug := range sum.NeedsReview {
		fmt.Fprintf(os.Stderr, "人工复核：%s\n", slug)
	}
	if len(sum.NeedsReview) > 0 {
		return 1
	}
	return 0
}

func fixYearsCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printFixYearsUsage()
			return 0
		}
	}

	ca, err := parseCommonArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printFixYearsUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.cli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误：%v\n", err)
		return 1
	}

	moves, err := planner.LegacyFixes(eff.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "扫描旧格式文件名失败：%v\n", err)
		return 1
	}
	if len(moves) == 0 {
		fmt.Fprintln(os.Stderr, "没有需要修正的旧格式文件名")
		return 0
	}

	var failed int
	for i, mv := range moves {
		if !eff.Apply {
			fmt.Fprintf(os.Stderr, "[%d/%d] dry-run：%s -> %s\n",
				i+1, len(moves), mv.File.RelPath, filepath.Base(mv.DstAbs))
			continue
		}
		if err := fsx.Rename(mv.File.AbsPath, mv.DstAbs); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "[%d/%d] FAIL %s：%v\n", i+1, len(moves), mv.File.RelPath, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] OK   %s -> %s\n",
			i+1, len(moves), mv.File.RelPath, filepath.Base(mv.DstAbs))
	}
	if !eff.Apply {
		fmt.Fprintf(os.Stderr, "dry-run：共 %d 个候选；加 --apply 执行\n", len(moves))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// commonArgs 是各子命令共享的位置参数与开关。
type commonArgs struct {
	Path string

	TalksURL    string
	TalksURLSet bool

	Year    int
	YearSet bool

	Apply    bool
	ApplySet bool
}

func (c commonArgs) cli() config.CLIArgs {
	return config.CLIArgs{
		Path:        c.Path,
		TalksURL:    c.TalksURL,
		TalksURLSet: c.TalksURLSet,
		Year:        c.Year,
		YearSet:     c.YearSet,
		Apply:       c.Apply,
		ApplySet:    c.ApplySet,
	}
}

func parseCommonArgs(args []string) (commonArgs, error) {
	ca, extra, err := parseArgsWith(args)
	if err != nil {
		return commonArgs{}, err
	}
	_ = extra
	return ca, nil
}

// parseArgsWith 解析共享参数，外加 extraFlags 中声明的 `--flag value` 形式参数。
func parseArgsWith(args []string, extraFlags ...string) (commonArgs, map[string]string, error) {
	ca := commonArgs{}
	extra := map[string]string{}

	takesValue := func(name string) bool {
		for _, f := range extraFlags {
			if f == name {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--url":
			if i+1 >= len(args) {
				return commonArgs{}, nil, fmt.Errorf("--url 需要一个值")
			}
			i++
			ca.TalksURL = args[i]
			ca.TalksURLSet = true
		case strings.HasPrefix(a, "--url="):
			ca.TalksURL = strings.TrimPrefix(a, "--url=")
			ca.TalksURLSet = true
		case a == "--year":
			if i+1 >= len(args) {
				return commonArgs{}, nil, fmt.Errorf("--year 需要一个值")
			}
			i++
			y, err := strconv.Atoi(args[i])
			if err != nil {
				return commonArgs{}, nil, fmt.Errorf("--year 必须是数字，实际是 %q", args[i])
			}
			ca.Year = y
			ca.YearSet = true
		case strings.HasPrefix(a, "--year="):
			v := strings.TrimPrefix(a, "--year=")
			y, err := strconv.Atoi(v)
			if err != nil {
				return commonArgs{}, nil, fmt.Errorf("--year 必须是数字，实际是 %q", v)
			}
			ca.Year = y
			ca.YearSet = true
		case a == "--apply":
			ca.Apply = true
			ca.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ca.Apply = true
			case "false":
				ca.Apply = false
			default:
				return commonArgs{}, nil, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ca.ApplySet = true
		case takesValue(a):
			if i+1 >= len(args) {
				return commonArgs{}, nil, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			extra[a] = args[i]
		case strings.Contains(a, "=") && takesValue(a[:strings.Index(a, "=")]):
			eq := strings.Index(a, "=")
			extra[a[:eq]] = a[eq+1:]
		case strings.HasPrefix(a, "-"):
			return commonArgs{}, nil, fmt.Errorf("未知参数 %q", a)
		default:
			if ca.Path != "" {
				return commonArgs{}, nil, fmt.Errorf("重复的 path：%q 与 %q", ca.Path, a)
			}
			ca.Path = a
		}
	}
	return ca, extra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pvmc run      [path] [--url URL | --year N] [--apply[=true|false]]
  pvmc fetch    [path] [--folder URL|ID] [--year N]
  pvmc convert  [path] [--year N] [--info-dir DIR] [--out DIR]
  pvmc fixyears [path] [--apply]

命令：
  run       匹配并重命名会议录像（默认 dry-run）
  fetch     从 Google Drive 文件夹下载原始录像
  convert   把 yt-dlp 元数据转换为 pyvideo 数据文件
  fixyears  把旧格式 "(YYYY)" 文件名修正为 "(PyBay YYYY)"

使用 "pvmc <命令> --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pvmc run [path] [--url URL | --year N] [--apply[=true|false]]

参数：
  --url       日程页地址（可从中推导年份）
  --year      会议年份（可推导日程页地址）
  --apply     执行重命名并写运行报告（默认 dry-run）；--apply=false 可覆盖配置
  -h, --help  显示帮助
`)
}

func printFetchUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pvmc fetch [path] [--folder URL|ID] [--year N]

参数：
  --folder    Google Drive 文件夹地址或 ID（未指定则读配置 drive_folder）
  -h, --help  显示帮助

凭据通过环境变量提供：PVMC_DRIVE_TOKEN（OAuth bearer）或 PVMC_DRIVE_API_KEY（公开文件夹）。
`)
}

func printConvertUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pvmc convert [path] [--year N] [--info-dir DIR] [--out DIR]

参数：
  --info-dir  yt-dlp .info.json 所在目录（默认 <path>/_yt_info）
  --out       pyvideo 数据输出目录（默认 <path>/_pyvideo）
  -h, --help  显示帮助
`)
}

func printFixYearsUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pvmc fixyears [path] [--apply]

把历史遗留的 "Title — Speaker (2016).mp4" 修正为 "Title — Speaker (PyBay 2016).mp4"。
默认 dry-run，只打印将要执行的重命名。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：matched=%d review=%d ambiguous=%d no_video=%d failed=%d\n",
			rr.Summary.Matched, rr.Summary.Review, rr.Summary.Ambiguous, rr.Summary.NoVideo, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 || rr.Summary.Ambiguous > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed && it.Status != domain.StatusAmbiguous {
					continue
				}
				key := it.Talk
				if key == "" && len(it.Files) > 0 {
					// 合成条目：用首个输入文件路径做定位锚点。
					key = it.Files[0].Src
				}
				if key == "" {
					key = "<unknown>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：matched=%d review=%d ambiguous=%d no_video=%d failed=%d\n",
		rr.Summary.Matched, rr.Summary.Review, rr.Summary.Ambiguous, rr.Summary.NoVideo, rr.Summary.Failed,
	)
}

func reportForConfigError(cwdAbs string, ca commonArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       cwdAbs,
		DryRun:     !(ca.ApplySet && ca.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:     domain.StatusFailed,
			ErrorCode:  config.Code(err),
			ErrorMsg:   err.Error(),
			Candidates: []string{},
			Files:      []domain.FileResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Path, run.ReportFileName))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}
