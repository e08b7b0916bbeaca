package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 pvmc.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultWorkers 是并发下载/抓取 worker 数的内置默认值。
	DefaultWorkers = 4
	// DefaultFuzzyMinConfidence 是模糊标题匹配的默认最低置信度。
	DefaultFuzzyMinConfidence = 0.95
	// talksURLTemplate 是 pybay.org 日程页面的 URL 模板（按年份展开）。
	talksURLTemplate = "https://pybay.org/speaking/talk-list-%d/"
)

// CLIArgs 只包含 CLI 暴露的入口项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Path string

	TalksURL    string
	TalksURLSet bool

	Year    int
	YearSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 pvmc.json 的解析结构。
type FileConfig struct {
	Path               string       `json:"path"`
	TalksURL           string       `json:"talks_url"`
	Year               int          `json:"year"`
	Apply              *bool        `json:"apply"`
	Workers            int          `json:"workers"`
	Proxy              *ProxyConfig `json:"proxy"`
	DownloadProxy      bool         `json:"download_proxy"`
	ExcludeDirs        []string     `json:"exclude_dirs"`
	DriveFolder        string       `json:"drive_folder"`
	FuzzyMinConfidence float64      `json:"fuzzy_min_confidence"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	TalksURL string
	Year     int
	Apply    bool

	Workers       int
	ProxyURL      string
	DownloadProxy bool
	ExcludeDirs   []string

	// DriveFolder 是会议原始录像所在的 Google Drive 文件夹 ID（可选；
	// 仅 fetch 子命令使用）。
	DriveFolder string

	// FuzzyMinConfidence 是 convert 子命令做标题模糊匹配时的最低置信度，(0,1]。
	FuzzyMinConfidence float64
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按文档约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/pvmc.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/pvmc.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - talks_url / year：CLI > config > 互相推导（url 尾段年份 <=> 模板展开）
// - apply：CLI --apply/--apply=false > config > 默认 false
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/pvmc.json。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath = filepath.Join(absPath, "pvmc.json")

		fc, _, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}

		return merge(absPath, cli, fc, cfgPath)
	}

	// CLI 没给 path：必须读取 <cwd>/pvmc.json，且其中必须包含 path。
	cfgPath = filepath.Join(cwdAbs, "pvmc.json")
	var exists bool
	fc, exists, err = readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

var urlYearRE = regexp.MustCompile(`(\d{4})/?$`)

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// talks_url 与 year 两者允许只给一个，另一个推导得出。
	talksURL := ""
	if cli.TalksURLSet {
		talksURL = strings.TrimSpace(cli.TalksURL)
	} else {
		talksURL = strings.TrimSpace(fc.TalksURL)
	}

	year := 0
	if cli.YearSet {
		year = cli.Year
	} else if fc.Year != 0 {
		year = fc.Year
	}

	if year == 0 && talksURL != "" {
		if m := urlYearRE.FindStringSubmatch(talksURL); m != nil {
			// 正则保证 4 位数字，Atoi 不会失败。
			year, _ = strconv.Atoi(m[1])
		}
	}
	if year == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("talks_url 与 year 至少提供一个（year 也可由 talks_url 尾段推导）")}
	}
	if year < 2015 || year > 2100 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("year 超出合理范围：%d", year)}
	}
	if talksURL == "" {
		talksURL = fmt.Sprintf(talksURLTemplate, year)
	}
	if u, err := url.Parse(talksURL); err != nil || u.Scheme == "" || u.Host == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("talks_url 无效：%q", talksURL)}
	}

	// apply：CLI > config > 默认 false
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	workers := fc.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	// 文档约定：范围建议 [1, 16]；超出截断。
	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
	}
	if fc.DownloadProxy && proxyURL == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("download_proxy=true 但 proxy.url 为空")}
	}

	minConf := fc.FuzzyMinConfidence
	if minConf == 0 {
		minConf = DefaultFuzzyMinConfidence
	}
	if minConf <= 0 || minConf > 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("fuzzy_min_confidence 必须在 (0,1]，实际是 %v", fc.FuzzyMinConfidence)}
	}

	return EffectiveConfig{
		Path:               absPath,
		TalksURL:           talksURL,
		Year:               year,
		Apply:              apply,
		Workers:            workers,
		ProxyURL:           proxyURL,
		DownloadProxy:      fc.DownloadProxy,
		ExcludeDirs:        append([]string(nil), fc.ExcludeDirs...),
		DriveFolder:        strings.TrimSpace(fc.DriveFolder),
		FuzzyMinConfidence: minConf,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
