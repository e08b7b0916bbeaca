package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pybay-video/PVMC/internal/domain"
)

// 本包把“站点变化”限制在 scrape 内部；核心流程只依赖稳定的 TalkRecord。
//
// 约束：
// - Fetch 不做缓存、不做限速（重试由 httpx.Transport 统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - 返回的记录只填原始字段（RawTime 等），规范化由 catalog.Prepare 统一完成

// sessionize 在日程页面内嵌一个渲染 API；优先抓它，比解析 WordPress 外壳稳定。
var sessionizeAPIRE = regexp.MustCompile(`https://sessionize\.com/api/v2/[^/"'\s]+/view/Sessions`)

// talk-list 页面 URL 以年份段结尾，例如 /speaking/talk-list-2025/。
var yearSuffixRE = regexp.MustCompile(`(\d{4})/?$`)

// Fetch 抓取日程 HTML。
//
// 流程（与站点现状一致）：
// 1. 抓 talksURL（pybay.org 的 talk-list 页面）
// 2. 页面内若能找到 sessionize API URL，则改抓 <api>?under=True 的渲染结果
// 3. 找不到则直接用页面本身（站点改为服务端渲染时仍可工作）
//
// pageURL 是最终被解析的 URL（用于 report 追溯）。
func Fetch(ctx context.Context, talksURL string, c *http.Client) (html []byte, pageURL string, err error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	talksURL = strings.TrimSpace(talksURL)
	if talksURL == "" {
		return nil, "", errors.New("talks_url 不能为空")
	}

	page, err := fetchURL(ctx, c, talksURL)
	if err != nil {
		return nil, "", err
	}

	api := sessionizeAPIRE.Find(page)
	if api == nil {
		return page, talksURL, nil
	}

	apiURL := string(api) + "?under=True"
	rendered, err := fetchURL(ctx, c, apiURL)
	if err != nil {
		return nil, "", err
	}
	return rendered, apiURL, nil
}

// Parse 把 sessionize 渲染的日程 HTML 解析为谈话记录。
//
// 没有任何 li.sz-session 视为解析失败（页面结构变更必须显式暴露，
// 而不是产出空目录让后续全部文件落入 unmatched）。
func Parse(html []byte) ([]domain.TalkRecord, error) {
	if len(html) == 0 {
		return nil, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	sessions := doc.Find("li.sz-session")
	if sessions.Length() == 0 {
		return nil, errors.New("页面中没有任何 sz-session 节点（页面结构可能已变更）")
	}

	talks := make([]domain.TalkRecord, 0, sessions.Length())
	sessions.Each(func(_ int, s *goquery.Selection) {
		var t domain.TalkRecord

		if id, ok := s.Attr("id"); ok {
			t.ID = strings.TrimPrefix(id, "sz-session-")
		}
		t.Title = normSpace(s.Find("h3.sz-session__title").First().Text())
		t.Description = normSpace(s.Find("p.sz-session__description").First().Text())
		t.Room = normSpace(s.Find("div.sz-session__room").First().Text())
		t.RawTime = startTime(normSpace(s.Find("div.sz-session__time").First().Text()))

		s.Find("ul.sz-session__speakers li span").Each(func(_ int, sp *goquery.Selection) {
			name := normSpace(sp.Text())
			if name == "" {
				return
			}
			first, last := splitSpeakerName(name)
			t.Speakers = append(t.Speakers, domain.Speaker{First: first, Last: last})
		})

		talks = append(talks, t)
	})
	return talks, nil
}

// YearFromURL 从 talk-list 页面 URL 的尾段取会议年份。
func YearFromURL(talksURL string) (int, error) {
	m := yearSuffixRE.FindStringSubmatch(strings.TrimSpace(talksURL))
	if m == nil {
		return 0, fmt.Errorf("无法从 URL 推断年份：%q", talksURL)
	}
	return strconv.Atoi(m[1])
}

// startTime 把 "Sat 10:00 am - 10:25 am" 这类时间段压缩为开始时间 "10:00 am"。
// 规则：按 " - " 取第一段；若第一段形如 "<星期> <时间>"（3 个以上字段）则去掉星期前缀。
func startTime(timeText string) string {
	timeText = strings.TrimSpace(timeText)
	if !strings.Contains(timeText, " - ") {
		return timeText
	}
	start := strings.TrimSpace(strings.SplitN(timeText, " - ", 2)[0])
	parts := strings.Fields(start)
	if len(parts) >= 3 {
		return strings.Join(parts[1:], " ")
	}
	return start
}

// splitSpeakerName 把展示全名拆为 first/last：首个字段是 first，余下全部是 last。
func splitSpeakerName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
