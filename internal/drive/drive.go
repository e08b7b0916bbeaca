package drive

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pybay-video/PVMC/internal/infra/fsx"
)

// 本包直接走 Drive v3 的 REST 接口（files 列表 + alt=media 流式下载），
// 不引入官方 SDK：下载路径上 SDK 的分块封装明显拖慢大文件吞吐。

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"

	// EnvToken / EnvAPIKey 是凭证的环境变量名（bearer token 优先）。
	EnvToken  = "PVMC_DRIVE_TOKEN"
	EnvAPIKey = "PVMC_DRIVE_API_KEY"

	maxRetries = 5
)

// File 是 Drive 文件夹中一个视频文件的元数据。
type File struct {
	ID   string
	Name string
	Size int64
	MD5  string
}

// Client 访问单个 Drive 文件夹。并发安全（只读字段 + 无状态方法）。
type Client struct {
	HTTP    *http.Client
	BaseURL string // 留空用官方端点；测试时指向 httptest
	Token   string // OAuth bearer token（优先）
	APIKey  string // API key（公开共享文件夹可用）
}

// NewClient 组装 client；凭证从环境变量读取。
func NewClient(httpClient *http.Client) *Client {
	return &Client{
		HTTP:   httpClient,
		Token:  strings.TrimSpace(os.Getenv(EnvToken)),
		APIKey: strings.TrimSpace(os.Getenv(EnvAPIKey)),
	}
}

func (c *Client) baseURL() string {
	if strings.TrimSpace(c.BaseURL) == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

var folderIDREs = []*regexp.Regexp{
	regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`),
}

// ExtractFolderID 从 Drive 文件夹 URL 中取出 ID；输入已是裸 ID 时原样返回。
func ExtractFolderID(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "/") && !strings.Contains(input, "drive.google.com") {
		return input
	}
	for _, re := range folderIDREs {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1]
		}
	}
	return input
}

// StatusError 表示 Drive 返回了非 2xx 状态码。
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("drive: HTTP %d（%s）", e.StatusCode, e.URL)
}

// ListVideos 列出文件夹内的全部视频文件（跟随分页）。
func (c *Client) ListVideos(ctx context.Context, folderID string) ([]File, error) {
	folderID = ExtractFolderID(folderID)
	if folderID == "" {
		return nil, errors.New("drive: folder id 不能为空")
	}

	type wireFile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		// Drive v3 的 size 是字符串。
		Size string `json:"size"`
		MD5  string `json:"md5Checksum"`
	}
	type wirePage struct {
		Files         []wireFile `json:"files"`
		NextPageToken string     `json:"nextPageToken"`
	}

	var (
		out       []File
		pageToken string
	)
	for {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("'%s' in parents and mimeType contains 'video/'", folderID))
		q.Set("fields", "nextPageToken, files(id, name, size, md5Checksum)")
		q.Set("pageSize", "1000")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		if c.APIKey != "" && c.Token == "" {
			q.Set("key", c.APIKey)
		}

		u := c.baseURL() + "/files?" + q.Encode()
		body, err := c.getJSON(ctx, u)
		if err != nil {
			return nil, err
		}

		var page wirePage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("drive: 解析文件列表失败：%w", err)
		}
		for _, f := range page.Files {
			size, _ := strconv.ParseInt(f.Size, 10, 64)
			out = append(out, File{ID: f.ID, Name: f.Name, Size: size, MD5: f.MD5})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) getJSON(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}

// Download 把单个文件流式下载到 dstDir/<Name>，并做 size + md5 校验。
//
// 规则：
// - 先写 .part 再改名：中断不会留下看似完整的半成品
// - 有界重试 + 指数退避 + 抖动；403（非限流）与 404 不重试
// - 本地已存在且校验通过 => 直接跳过（返回 skipped=true）
func (c *Client) Download(ctx context.Context, f File, dstDir string) (skipped bool, err error) {
	dst := filepath.Join(dstDir, f.Name)
	if verifyLocal(dst, f.Size, f.MD5) {
		return true, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		err := c.downloadOnce(ctx, f, dst)
		if err == nil {
			return false, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) {
			switch {
			case se.StatusCode == http.StatusNotFound:
				return false, err
			case se.StatusCode == http.StatusForbidden && !isRateLimited(se):
				return false, err
			}
		}
		if ctx.Err() != nil {
			return false, lastErr
		}
	}
	return false, lastErr
}

func (c *Client) downloadOnce(ctx context.Context, f File, dst string) error {
	u := c.baseURL() + "/files/" + url.PathEscape(f.ID) + "?alt=media"
	if c.APIKey != "" && c.Token == "" {
		u += "&key=" + url.QueryEscape(c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{URL: u, StatusCode: resp.StatusCode, Body: string(b)}
	}

	part := dst + ".part"
	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(out, h), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return err
	}

	if f.Size > 0 && n != f.Size {
		_ = os.Remove(part)
		return fmt.Errorf("drive: %s 大小不符：期望 %d，实际 %d", f.Name, f.Size, n)
	}
	if f.MD5 != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, f.MD5) {
			_ = os.Remove(part)
			return fmt.Errorf("drive: %s md5 不符：期望 %s，实际 %s", f.Name, f.MD5, got)
		}
	}

	return fsx.Rename(part, dst)
}

func verifyLocal(path string, size int64, wantMD5 string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if size > 0 && fi.Size() != size {
		return false
	}
	if wantMD5 == "" {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), wantMD5)
}

func isRateLimited(se *StatusError) bool {
	low := strings.ToLower(se.Body)
	return strings.Contains(low, "rate") || strings.Contains(low, "quota")
}

func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	// 抖动：[0.5, 1.0) 倍，避免 worker 齐步重试。
	return time.Duration(float64(base) * (0.5 + rand.Float64()*0.5))
}
