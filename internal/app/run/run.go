package run

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/pybay-video/PVMC/internal/app/planner"
	"github.com/pybay-video/PVMC/internal/catalog"
	"github.com/pybay-video/PVMC/internal/config"
	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/infra/fsx"
	"github.com/pybay-video/PVMC/internal/infra/httpx"
	"github.com/pybay-video/PVMC/internal/match"
	"github.com/pybay-video/PVMC/internal/scan"
	"github.com/pybay-video/PVMC/internal/scrape"
)

// ReportFileName 是 apply 模式写入扫描根目录的运行报告文件名。
// "_" 前缀保证下一轮扫描跳过它。
const ReportFileName = "_pvmc_report.json"

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 阶段顺序固定：catalog -> scan -> match -> plan -> exec。
// 改名是最后一步且串行执行；任何一次失败都会回滚本轮已完成的改名。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Year:      eff.Year,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}

	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		if eff.Apply {
			// 报告落盘失败不改变运行结果（报告本身已经通过返回值交付）。
			if b, err := json.MarshalIndent(rr, "", "  "); err == nil {
				_ = fsx.WriteFileAtomicReplace(eff.Path, ReportFileName, append(b, '\n'))
			}
		}
		return rr
	}

	// catalog：本地优先，缺失则在线抓取。
	catalogStarted := time.Now()
	store := catalog.New(eff.Path, !eff.Apply)
	talks, ok, err := store.Load(eff.Year)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if catalog.IsValidation(err) {
			code = domain.ErrCodeCatalogInvalid
		}
		rr.Items = append(rr.Items, syntheticFailed(code, fmt.Sprintf("读取谈话目录失败：%v", err)))
		return finish()
	}
	source := "cache"
	if !ok {
		source = "scrape"
		talks, err = fetchCatalog(ctx, eff, store)
		if err != nil {
			rr.Items = append(rr.Items, classifyCatalogError(err))
			return finish()
		}
	}
	if obs != nil {
		obs.OnPhaseDone("catalog", map[string]any{
			"talks":  len(talks),
			"source": source,
		}, time.Since(catalogStarted))
	}

	// scan
	scanStarted := time.Now()
	files, err := scan.ScanVideos(eff.Path, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish()
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	// match
	matchStarted := time.Now()
	results, noVideo := match.Match(talks, files)
	if obs != nil {
		var m, rv, amb int
		for _, r := range results {
			switch r.Kind {
			case domain.MatchKindMatched:
				m++
			case domain.MatchKindAmbiguous:
				amb++
			default:
				rv++
			}
		}
		obs.OnPhaseDone("match", map[string]any{
			"matched":   m,
			"review":    rv,
			"ambiguous": amb,
			"no_video":  len(noVideo),
		}, time.Since(matchStarted))
	}

	// plan
	planStarted := time.Now()
	plan := planner.Build(talks, results)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"moves":     len(plan.Moves),
			"conflicts": len(plan.Failures),
		}, time.Since(planStarted))
	}

	// 把匹配结果 + 计划装配为 item；exec 阶段只更新文件状态。
	moveByAbs := make(map[string]planner.Move, len(plan.Moves))
	for _, mv := range plan.Moves {
		moveByAbs[mv.File.AbsPath] = mv
	}
	failByAbs := make(map[string]planner.Failure, len(plan.Failures))
	for _, f := range plan.Failures {
		failByAbs[f.File.AbsPath] = f
	}

	itemByAbs := make(map[string]int, len(results))
	for _, r := range results {
		item := buildItem(eff, talks, r, moveByAbs, failByAbs)
		itemByAbs[r.File.AbsPath] = len(rr.Items)
		rr.Items = append(rr.Items, item)
	}
	for _, idx := range noVideo {
		t := talks[idx]
		rr.Items = append(rr.Items, domain.ItemResult{
			Talk:       t.Title,
			Room:       t.Room,
			Time:       t.Start,
			Status:     domain.StatusNoVideo,
			Candidates: []string{},
			Files:      []domain.FileResult{},
		})
	}

	// exec：仅 apply；改名最后一步、串行，失败即回滚本轮已完成的改名。
	if eff.Apply {
		executeRenames(plan.Moves, rr.Items, itemByAbs, obs)
	}

	return finish()
}

func fetchCatalog(ctx context.Context, eff config.EffectiveConfig, store catalog.Store) ([]domain.TalkRecord, error) {
	client, err := httpx.NewPageClient(eff.ProxyURL)
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}

	html, _, err := scrape.Fetch(ctx, eff.TalksURL, client)
	if err != nil {
		return nil, &stageError{stage: "fetch", err: err}
	}
	raw, err := scrape.Parse(html)
	if err != nil {
		return nil, &stageError{stage: "parse", err: err}
	}
	talks, err := catalog.Prepare(raw, eff.Year)
	if err != nil {
		return nil, err
	}
	if eff.Apply {
		// 抓取结果缓存到根目录；写失败只影响下次复用，不阻断本轮。
		_ = store.Save(eff.Year, talks)
	}
	return talks, nil
}

type stageError struct {
	stage string // "fetch" 或 "parse"
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func classifyCatalogError(err error) domain.ItemResult {
	switch v := err.(type) {
	case *stageError:
		code := domain.ErrCodeFetchFailed
		msg := fmt.Sprintf("抓取日程失败：%v", v.err)
		if v.stage == "parse" {
			code = domain.ErrCodeParseFailed
			msg = fmt.Sprintf("解析日程失败（页面结构可能变化）：%v", v.err)
		}
		return syntheticFailed(code, msg)
	case *config.Error:
		return syntheticFailed(domain.ErrCodeConfigInvalid, v.Error())
	}
	if catalog.IsValidation(err) {
		return syntheticFailed(domain.ErrCodeCatalogInvalid, err.Error())
	}
	return syntheticFailed(domain.ErrCodeFetchFailed, err.Error())
}

func buildItem(eff config.EffectiveConfig, talks []domain.TalkRecord, r domain.MatchResult, moveByAbs map[string]planner.Move, failByAbs map[string]planner.Failure) domain.ItemResult {
	item := domain.ItemResult{
		Candidates: []string{},
		Files:      []domain.FileResult{},
	}

	switch r.Kind {
	case domain.MatchKindMatched:
		t := talks[r.TalkIdx]
		item.Talk = t.Title
		item.Room = t.Room
		item.Time = t.Start
		item.Status = domain.StatusMatched
	case domain.MatchKindAmbiguous:
		item.Status = domain.StatusAmbiguous
		item.ErrorCode = domain.ErrCodeAmbiguous
		item.ErrorMsg = r.Reason
		item.Candidates = candidateTitles(talks, r.Candidates)
	default:
		item.Status = domain.StatusReview
		item.ErrorCode = domain.ErrCodeNoRoomTime
		item.ErrorMsg = r.Reason
	}

	fr := domain.FileResult{Src: r.File.RelPath, Status: domain.FileStatusPlanned}
	if mv, ok := moveByAbs[r.File.AbsPath]; ok {
		if rel, err := filepath.Rel(eff.Path, mv.DstAbs); err == nil {
			fr.Dst = rel
		} else {
			fr.Dst = mv.DstAbs
		}
	} else if f, ok := failByAbs[r.File.AbsPath]; ok {
		item.Status = domain.StatusFailed
		item.ErrorCode = f.ErrorCode
		item.ErrorMsg = f.ErrorMsg
		fr.Status = domain.FileStatusFailed
	}
	item.Files = append(item.Files, fr)
	return item
}

func candidateTitles(talks []domain.TalkRecord, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(talks) {
			out = append(out, talks[i].Title)
		}
	}
	sort.Strings(out)
	return out
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:     domain.StatusFailed,
		ErrorCode:  code,
		ErrorMsg:   msg,
		Candidates: []string{},
		Files:      []domain.FileResult{},
	}
}

// executeRenames 串行执行改名并就地更新 items 的文件状态。
// 一旦失败：失败文件标记 failed，本轮已完成的改名倒序回滚，剩余动作不再执行。
func executeRenames(moves []planner.Move, items []domain.ItemResult, itemByAbs map[string]int, obs Observer) {
	fileOf := func(abs string) *domain.FileResult {
		idx, ok := itemByAbs[abs]
		if !ok || len(items[idx].Files) == 0 {
			return nil
		}
		return &items[idx].Files[0]
	}

	var done []planner.Move
	for i, mv := range moves {
		oneStarted := time.Now()
		err := fsx.Rename(mv.File.AbsPath, mv.DstAbs)
		if obs != nil {
			obs.OnRenameDone(i+1, len(moves), mv.File.RelPath, filepath.Base(mv.DstAbs), err, time.Since(oneStarted))
		}
		if err == nil {
			done = append(done, mv)
			if fr := fileOf(mv.File.AbsPath); fr != nil {
				fr.Status = domain.FileStatusRenamed
			}
			continue
		}

		if idx, ok := itemByAbs[mv.File.AbsPath]; ok {
			items[idx].Status = domain.StatusFailed
			items[idx].ErrorCode = domain.ErrCodeRenameFailed
			items[idx].ErrorMsg = err.Error()
			if len(items[idx].Files) > 0 {
				items[idx].Files[0].Status = domain.FileStatusFailed
			}
		}

		// 回滚顺序：倒序（更符合栈语义）。
		for j := len(done) - 1; j >= 0; j-- {
			back := done[j]
			fr := fileOf(back.File.AbsPath)
			if rbErr := fsx.Rename(back.DstAbs, back.File.AbsPath); rbErr == nil {
				if fr != nil {
					fr.Status = domain.FileStatusRolledBack
				}
			} else if fr != nil {
				fr.Status = domain.FileStatusFailed
			}
		}
		return
	}
}
