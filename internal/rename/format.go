// Package rename 把匹配结论渲染为发布用文件名。
// 命名方案：{Title} — {Speaker1} [& {Speaker2} ...] (PyBay {Year}).{ext}；
// 无法匹配的文件只加复核前缀，其余保持原样。
package rename

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pybay-video/PVMC/internal/domain"
)

// ReviewPrefix 复核标记。用 "!" 开头让待复核文件在目录里排到最前
// （ASCII 里 '!' 先于字母和数字）。
const ReviewPrefix = "![REVIEW_NEEDED]_"

// UnknownSpeaker 是讲者信息完全缺失时的占位显示。
// 绝不渲染空串——空讲者会在文件名里留下歧义的双空格。
const UnknownSpeaker = "Unknown Speaker"

// unsafeRE 匹配常见文件系统（含 Windows）不允许的字符。
var unsafeRE = regexp.MustCompile(`[<>:"/\\|?*]`)

// legacyYearRE 匹配旧式 "(YYYY).ext" 结尾（不含已经是 "(PyBay YYYY)" 的）。
var legacyYearRE = regexp.MustCompile(`\((\d{4})\)(\.\w+)$`)

// Publication 渲染发布文件名。
//
// 规则：
//   - 讲者按 catalog 顺序以 " & " 连接（不按字母序）
//   - 单个讲者 first/last 以空格连接；任一缺失用存在的一侧；
//     全缺失渲染 UnknownSpeaker
//   - 不安全字符从整个文件名中删除（不是替换）；删除是全量且幂等的
func Publication(talk domain.TalkRecord, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := fmt.Sprintf("%s — %s (PyBay %d)%s", talk.Title, SpeakerList(talk.Speakers), talk.Year, ext)
	return StripUnsafe(name)
}

// SpeakerList 按 catalog 顺序渲染讲者列表。
func SpeakerList(sps []domain.Speaker) string {
	names := make([]string, 0, len(sps))
	for _, sp := range sps {
		if n := sp.FullName(); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return UnknownSpeaker
	}
	return strings.Join(names, " & ")
}

// StripUnsafe 删除文件系统不安全字符。幂等：对已清洗的串是 no-op。
func StripUnsafe(s string) string {
	return unsafeRE.ReplaceAllString(s, "")
}

// ReviewFlag 给无法匹配的文件名加复核前缀。幂等：已有前缀不再追加。
func ReviewFlag(name string) string {
	if strings.HasPrefix(name, ReviewPrefix) {
		return name
	}
	return ReviewPrefix + name
}

// FixLegacyYear 把旧式 "(YYYY).ext" 结尾修正为 "(PyBay YYYY).ext"。
// 返回 false 表示无需修正（包括已经是 PyBay 格式的情况）。
func FixLegacyYear(name string) (string, bool) {
	// 正则要求 "(" 紧邻四位年份，"(PyBay YYYY)" 天然不命中，无需排除。
	m := legacyYearRE.FindStringSubmatchIndex(name)
	if m == nil {
		return name, false
	}
	year := name[m[2]:m[3]]
	ext := name[m[4]:m[5]]
	return name[:m[0]] + "(PyBay " + year + ")" + ext, true
}
