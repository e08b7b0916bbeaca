package pyvideo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/fuzzy"
	"github.com/pybay-video/PVMC/internal/infra/fsx"
)

// 本包把 yt-dlp 的 .info.json 元数据转换为 pyvideo.org 要求的数据格式：
// <conf-slug>/category.json + <conf-slug>/videos/<talk-slug>.json。

var (
	slugRE = regexp.MustCompile(`\W+`)
	// "10:15 - 开场" 这类时间戳行不属于描述正文。
	timestampLineRE = regexp.MustCompile(`^\d+:\d\d - `)
	// YouTube 标题上的会议后缀与讲者尾巴，匹配前先剥掉。
	pybayParenRE  = regexp.MustCompile(`(?i)\s*\(pybay \d{4}\)`)
	speakerTailRE = regexp.MustCompile(`\s+[\x{2014}\x{2013}-]\s+[^\x{2014}\x{2013}]+$`)
	// 回退解析："Title — Speaker (PyBay YYYY)" 或老式 `"Title" - Speaker` / "Title by Speaker"。
	// 分隔符两侧要求空白，避免把标题内部的连字符词当成切分点。
	titleSpeakerRE = regexp.MustCompile(`^"?(.+?)"?\s+(?:\x{2014}|\x{2013}|-|by)\s+(.+?)\s*\(PyBay \d{4}\)\s*$`)
	legacyTitleRE  = regexp.MustCompile(`^"?(.+?)"?\s+(?:-|by)\s+(.+?)\s*$`)
)

// Conference 是一届会议的 pyvideo 级别元数据。
type Conference struct {
	Title       string
	PlaylistURL string
	ScheduleURL string
	Start       time.Time
	End         time.Time

	CopyrightText  string
	DropFirstLines int
	DropLastLines  int
}

// NewConference 按年份给出默认会议元数据。
func NewConference(year int) Conference {
	return Conference{
		Title:       fmt.Sprintf("PyBay %d", year),
		ScheduleURL: "https://pybay.org/speaking/schedule/",
		Start:       time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Slug 把标题转换为 URL 友好的文件名：小写、非单词字符转连字符、
// 最多保留前 10 个词。
func Slug(title string) string {
	s := slugRE.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	parts := strings.Split(s, "-")
	if len(parts) > 10 {
		parts = parts[:10]
	}
	return strings.Join(parts, "-")
}

// RelatedURL / Video / Talk 的 JSON 形状由 pyvideo.org 固定。
type RelatedURL struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type Video struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Talk struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Speakers    []string `json:"speakers"`
	Tags        []string `json:"tags"`

	Language      string       `json:"language"`
	Recorded      string       `json:"recorded"` // "2006-01-02"
	Duration      int          `json:"duration"`
	CopyrightText string       `json:"copyright_text"`
	RelatedURLs   []RelatedURL `json:"related_urls"`

	Videos       []Video `json:"videos"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

// YTInfo 是 yt-dlp .info.json 中本包消费的字段子集。
type YTInfo struct {
	Type        string `json:"_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UploadDate  string `json:"upload_date"` // "20060102"
	Duration    int    `json:"duration"`
	WebpageURL  string `json:"webpage_url"`
	Thumbnail   string `json:"thumbnail"`
}

// LoadYTInfoDir 读取目录内全部 *.json，按文件名排序；_type 非 video 的条目
// （播放列表壳等）跳过。
func LoadYTInfoDir(dir string) ([]YTInfo, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]YTInfo, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var info YTInfo
		if err := json.Unmarshal(b, &info); err != nil {
			return nil, fmt.Errorf("pyvideo: 解析 %s 失败：%w", filepath.Base(p), err)
		}
		if info.Type != "video" {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// TalkFromYouTube 把单条 YouTube 元数据转换为 Talk。
//
// 描述清洗：按会议配置去掉首尾模板行，再丢弃时间戳行。
// recorded 取上传日期并夹在会议起止日期之内（上传通常晚于实际演讲）。
func TalkFromYouTube(raw YTInfo, conf Conference) Talk {
	lines := strings.Split(raw.Description, "\n")
	if conf.DropFirstLines > 0 && conf.DropFirstLines < len(lines) {
		lines = lines[conf.DropFirstLines:]
	}
	if conf.DropLastLines > 0 && conf.DropLastLines < len(lines) {
		lines = lines[:len(lines)-conf.DropLastLines]
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if timestampLineRE.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	recorded := conf.Start
	if t, err := time.Parse("20060102", raw.UploadDate); err == nil {
		recorded = clampDate(t, conf.Start, conf.End)
	}

	return Talk{
		Title:         raw.Title,
		Description:   strings.Join(kept, "\n"),
		Speakers:      []string{},
		Tags:          []string{},
		Language:      "eng",
		Recorded:      recorded.Format("2006-01-02"),
		Duration:      raw.Duration,
		CopyrightText: conf.CopyrightText,
		RelatedURLs: []RelatedURL{
			{Label: "Conference schedule", URL: conf.ScheduleURL},
			{Label: "Full playlist", URL: conf.PlaylistURL},
		},
		Videos:       []Video{{Type: "youtube", URL: raw.WebpageURL}},
		ThumbnailURL: raw.Thumbnail,
	}
}

func clampDate(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

// ResolveSpeakers 给 Talk 补讲者：优先对权威目录做模糊标题匹配，
// 失败则回退到从 YouTube 标题正则拆解；两者都不行 => 需要人工复核。
func ResolveSpeakers(talk *Talk, m *fuzzy.Matcher, talks []domain.TalkRecord) (needsReview bool) {
	candidate := pybayParenRE.ReplaceAllString(talk.Title, "")
	candidate = speakerTailRE.ReplaceAllString(candidate, "")
	candidate = strings.TrimSpace(candidate)

	if m != nil {
		if idx, _, ok := m.Match(candidate); ok {
			t := talks[idx]
			talk.Title = t.Title
			talk.Speakers = speakerNames(t.Speakers)
			return false
		}
	}

	if m2 := titleSpeakerRE.FindStringSubmatch(talk.Title); m2 != nil {
		applyRegexSplit(talk, m2[1], m2[2])
		return false
	}
	if m2 := legacyTitleRE.FindStringSubmatch(talk.Title); m2 != nil {
		applyRegexSplit(talk, m2[1], m2[2])
		return false
	}
	return true
}

func applyRegexSplit(talk *Talk, title, speakers string) {
	talk.Title = strings.TrimSpace(title)
	for _, s := range strings.Split(speakers, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			talk.Speakers = append(talk.Speakers, s)
		}
	}
}

func speakerNames(sps []domain.Speaker) []string {
	out := make([]string, 0, len(sps))
	for _, sp := range sps {
		if n := sp.FullName(); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// WriteFiles 生成 pyvideo 数据目录：
// <dataDir>/<conf-slug>/category.json 与 <conf-slug>/videos/<talk-slug>.json。
// 会议目录整体重建（转换是幂等的全量产物）。
func WriteFiles(talks []Talk, conf Conference, dataDir string) error {
	confDir := filepath.Join(dataDir, Slug(conf.Title))
	if err := os.RemoveAll(confDir); err != nil {
		return err
	}
	videoDir := filepath.Join(confDir, "videos")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return err
	}

	cat, err := json.MarshalIndent(map[string]string{"title": conf.Title}, "", "  ")
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomic(confDir, "category.json", append(cat, '\n')); err != nil {
		return err
	}

	for _, t := range talks {
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return err
		}
		if err := fsx.WriteFileAtomic(videoDir, Slug(t.Title)+".json", append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Summary 是一次转换的统计结果。NeedsReview 列出没能确定讲者、
// 输出文件里仍是 YouTube 原始标题的 slug。
type Summary struct {
	Total       int
	Resolved    int
	NeedsReview []string
}

// Convert 执行完整转换：读 infoDir 下的 .info.json，借目录解析讲者，
// 产出 pyvideo 数据目录。catalog 可为空（纯正则回退）。
func Convert(infoDir, dataDir string, conf Conference, catalog []domain.TalkRecord, minConfidence float64) (Summary, error) {
	var sum Summary

	infos, err := LoadYTInfoDir(infoDir)
	if err != nil {
		return sum, err
	}

	var m *fuzzy.Matcher
	if len(catalog) > 0 {
		m = fuzzy.NewMatcher(catalog, fuzzy.Config{MinConfidence: minConfidence})
	}

	talks := make([]Talk, 0, len(infos))
	for _, info := range infos {
		t := TalkFromYouTube(info, conf)
		if ResolveSpeakers(&t, m, catalog) {
			sum.NeedsReview = append(sum.NeedsReview, Slug(t.Title))
		} else {
			sum.Resolved++
		}
		talks = append(talks, t)
	}
	sum.Total = len(talks)
	sort.Strings(sum.NeedsReview)

	if err := WriteFiles(talks, conf, dataDir); err != nil {
		return sum, err
	}
	return sum, nil
}
