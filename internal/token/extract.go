// Package token 把原始文件名分解为候选的 room/time/name/title 记号。
// 输入是松散的位置约定（Room - Time - LastName - Title），但标题自身
// 可能含分隔符，所以绝不按固定字段数索引。
package token

import (
	"path/filepath"
	"strings"

	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/timeofday"
)

// sep 是文件名段之间的分隔符。只认两侧带空格的形式，
// 避免把复合姓（Hatfield-Dodds）或标题内的连字号切开。
const sep = " - "

// Extract 从文件名提取 FilenameTokens。
//
// 策略：按分隔符切段；首段视为 room；向后扫描第一个能被时间规范化
// 接受的段作为 time；time 紧邻的下一段作为姓名片段；其余段按原分隔符
// 重新拼接为 title。无法归类的段并入 title，绝不丢弃。
//
// Extract 永不失败：识别不出的维度留空，由匹配引擎把缺失当作
// 该维度不命中。
func Extract(filename string) domain.FilenameTokens {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	segs := strings.Split(base, sep)
	for i := range segs {
		segs[i] = strings.TrimSpace(segs[i])
	}

	// 没有分隔符结构：整体归入 title，不猜 room。
	if len(segs) == 1 {
		return domain.FilenameTokens{Title: segs[0]}
	}

	tk := domain.FilenameTokens{Room: segs[0]}
	rest := segs[1:]

	timeIdx := -1
	for i, s := range rest {
		if looksLikeTime(s) {
			timeIdx = i
			break
		}
	}

	if timeIdx == -1 {
		tk.Title = strings.Join(rest, sep)
		return tk
	}
	tk.Time = rest[timeIdx]

	var title []string
	title = append(title, rest[:timeIdx]...)
	if timeIdx+1 < len(rest) {
		tk.Name = rest[timeIdx+1]
		title = append(title, rest[timeIdx+2:]...)
	}
	tk.Title = strings.Join(title, sep)
	return tk
}

// looksLikeTime 判断一段是否"就是"一个时间：除数字、冒号、空白与
// am/pm 外不得有其他字符，且能通过时间规范化。
// 只做宽松的 Normalize 会把 "Python 3" 这类标题段误判成时间。
func looksLikeTime(s string) bool {
	if s == "" {
		return false
	}
	stripped := strings.ToLower(s)
	stripped = strings.ReplaceAll(stripped, "am", "")
	stripped = strings.ReplaceAll(stripped, "pm", "")
	for _, r := range stripped {
		switch {
		case r >= '0' && r <= '9':
		case r == ':' || r == ' ' || r == '.':
		default:
			return false
		}
	}
	_, err := timeofday.Normalize(s)
	return err == nil
}
