package drive

import (
	"context"
	"sort"
	"sync"
)

const (
	ResultDownloaded = "downloaded"
	ResultSkipped    = "skipped"
	ResultFailed     = "failed"
)

// Result 是单个文件的下载结局。
type Result struct {
	File   File
	Status string
	Err    error
}

// Progress 在每个文件处理完成时被调用（可能来自多个 goroutine，实现须并发安全）。
type Progress func(done, total int, r Result)

// DownloadAll 用 worker pool 并发下载全部文件到 dstDir。
// 单个文件失败不影响其他文件；返回值按文件名稳定排序。
func (c *Client) DownloadAll(ctx context.Context, files []File, dstDir string, workers int, progress Progress) []Result {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan File)
	resCh := make(chan Result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				skipped, err := c.Download(ctx, f, dstDir)
				r := Result{File: f, Status: ResultDownloaded}
				switch {
				case err != nil:
					r.Status = ResultFailed
					r.Err = err
				case skipped:
					r.Status = ResultSkipped
				}
				resCh <- r
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resCh)
	}()

	results := make([]Result, 0, len(files))
	for r := range resCh {
		results = append(results, r)
		if progress != nil {
			progress(len(results), len(files), r)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].File.Name < results[j].File.Name })
	return results
}
