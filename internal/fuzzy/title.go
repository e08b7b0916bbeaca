// Package fuzzy 用近似字符串相似度把外部视频标题匹配回谈话目录。
// 与记号匹配路径相互独立：这里只看标题，不看 room/time——同一年度
// 目录内标题被假定为全局可区分。
package fuzzy

import (
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/pybay-video/PVMC/internal/domain"
)

// DefaultMinConfidence 对应来源流程的阈值：只有相似度 >= 0.95 才
// 自动采信；低于阈值的记录交人工复核。
const DefaultMinConfidence = 0.95

// Config 是可调参数。算法与阈值都没有被严格论证过（经验值），
// 所以两者都是可换的，不要写死。
type Config struct {
	// Metric 为空时使用 Smith-Waterman-Gotoh 局部对齐：
	// 它对子串匹配宽容，能吃下 YouTube 的 100 字符标题截断
	// 和细小的标点差异。
	Metric strutil.StringMetric

	// MinConfidence 是采信下限，取值 (0, 1]。
	MinConfidence float64
}

func DefaultConfig() Config {
	return Config{
		Metric:        metrics.NewSmithWatermanGotoh(),
		MinConfidence: DefaultMinConfidence,
	}
}

// Matcher 持有按目录顺序预归一化的标题。只读，可并发使用。
type Matcher struct {
	cfg    Config
	titles []string
}

// NewMatcher 从目录构造 Matcher。cfg 的零值字段回退到默认。
func NewMatcher(catalog []domain.TalkRecord, cfg Config) *Matcher {
	if cfg.Metric == nil {
		cfg.Metric = metrics.NewSmithWatermanGotoh()
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = DefaultMinConfidence
	}

	titles := make([]string, len(catalog))
	for i := range catalog {
		titles[i] = NormalizeTitle(catalog[i].Title)
	}
	return &Matcher{cfg: cfg, titles: titles}
}

// Match 返回最相似的目录下标与相似度。ok=false 表示最高相似度仍低于
// 阈值（或目录为空），调用方应标记人工复核而不是勉强采信。
// 并列最高分时取目录中靠前的条目，保证确定性。
func (m *Matcher) Match(candidateTitle string) (idx int, score float64, ok bool) {
	cand := NormalizeTitle(candidateTitle)
	if cand == "" || len(m.titles) == 0 {
		return -1, 0, false
	}

	idx = -1
	for i, title := range m.titles {
		if title == "" {
			continue
		}
		s := strutil.Similarity(cand, title, m.cfg.Metric)
		if s > score {
			score = s
			idx = i
		}
	}
	if idx < 0 || score < m.cfg.MinConfidence {
		return idx, score, false
	}
	return idx, score, true
}

// NormalizeTitle 统一比较形态：小写、标点折叠为空格、空白折叠。
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
