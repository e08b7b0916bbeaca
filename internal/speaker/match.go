// Package speaker 判断文件名里的姓名片段是否指向某位讲者。
// 匹配必须宽容：片段可能只含姓氏的一部分、复合姓的一截，或者落在
// 名字的位置上；但绝不能宽容到把不同的人配在一起。
package speaker

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pybay-video/PVMC/internal/domain"
)

// stripMn 去掉变音符号：NFD 分解后移除 Mn（非间距组合记号）再合成。
var stripMn = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize 统一比较前的形态：小写、去变音、折叠空白、去标点（连字符除外）。
// 连字符在复合姓（Hatfield-Dodds）里有语义，必须保留。
func normalize(s string) string {
	if out, _, err := transform.String(stripMn, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Matches 判断姓名片段是否可信地指向该讲者。
//
// 策略（有序，任一命中即成立）：
//  1. 片段与姓氏完全相等（大小写不敏感）
//  2. 片段是姓氏的子串，或姓氏是片段的子串（覆盖部分输入与
//     多段姓氏，例如 "van Rossum" 的文件名里只写 "Rossum"）
//  3. 连字符姓氏：片段等于任一连字符分段
//  4. 姓氏为空（资料不全）时，用同样的规则去匹配名字
func Matches(sp domain.Speaker, fragment string) bool {
	frag := normalize(fragment)
	if frag == "" {
		return false
	}

	if last := normalize(sp.Last); last != "" {
		return matchesName(last, frag)
	}
	if first := normalize(sp.First); first != "" {
		return matchesName(first, frag)
	}
	return false
}

func matchesName(name, frag string) bool {
	if name == frag {
		return true
	}
	if strings.Contains(name, frag) || strings.Contains(frag, name) {
		return true
	}
	if strings.Contains(name, "-") {
		for _, part := range strings.Split(name, "-") {
			if part != "" && part == frag {
				return true
			}
		}
	}
	return false
}

// AnyMatches 判断多讲者谈话是否命中：任一讲者命中即可，
// 绝不要求所有讲者都出现在文件名里。
func AnyMatches(sps []domain.Speaker, fragment string) bool {
	for _, sp := range sps {
		if Matches(sp, fragment) {
			return true
		}
	}
	return false
}
