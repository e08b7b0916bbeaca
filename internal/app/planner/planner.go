package planner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/rename"
)

// Move 是一次确定性的改名动作（同目录内，不跨目录移动）。
type Move struct {
	File    domain.VideoFile
	DstAbs  string
	TalkIdx int // -1 表示复核标记（非成品名）
}

// Failure 是计划阶段即可判定的失败（不执行任何写入）。
type Failure struct {
	File      domain.VideoFile
	ErrorCode string
	ErrorMsg  string
}

// Plan 是一次运行的完整执行计划。Moves 的顺序即执行顺序（按 RelPath 稳定排序）。
type Plan struct {
	Moves    []Move
	Failures []Failure
}

// Build 把匹配结果转换为执行计划（不做任何写入/移动）。
//
// 规则：
//   - matched：改为成品名 "{Title} — {Speakers} (PyBay {Year}).{ext}"
//   - unmatched / ambiguous：打上复核前缀（幂等）
//   - 目标冲突（两个文件指向同一目标，或目标已在磁盘上存在）=> target_conflict，
//     绝不覆盖已有文件
func Build(talks []domain.TalkRecord, results []domain.MatchResult) Plan {
	// 引擎输出已按 RelPath 排序；此处再排一次，让计划不依赖上游实现细节。
	sorted := append([]domain.MatchResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].File.RelPath != sorted[j].File.RelPath {
			return sorted[i].File.RelPath < sorted[j].File.RelPath
		}
		return sorted[i].File.Base < sorted[j].File.Base
	})

	var plan Plan
	claimed := make(map[string]struct{}, len(sorted))

	for _, r := range sorted {
		var (
			dstName string
			talkIdx = -1
		)
		switch r.Kind {
		case domain.MatchKindMatched:
			dstName = rename.Publication(talks[r.TalkIdx], r.File.Ext)
			talkIdx = r.TalkIdx
		default:
			dstName = rename.ReviewFlag(r.File.Base + r.File.Ext)
		}

		dstAbs := filepath.Join(filepath.Dir(r.File.AbsPath), dstName)
		if dstAbs == r.File.AbsPath {
			continue // 已是目标名：无事可做
		}

		if _, dup := claimed[dstAbs]; dup {
			plan.Failures = append(plan.Failures, Failure{
				File:      r.File,
				ErrorCode: domain.ErrCodeTargetConflict,
				ErrorMsg:  "目标文件名与本次计划中的另一文件冲突：" + dstName,
			})
			continue
		}
		if _, err := os.Stat(dstAbs); err == nil {
			plan.Failures = append(plan.Failures, Failure{
				File:      r.File,
				ErrorCode: domain.ErrCodeTargetConflict,
				ErrorMsg:  "目标文件已存在：" + dstName,
			})
			continue
		}

		claimed[dstAbs] = struct{}{}
		plan.Moves = append(plan.Moves, Move{File: r.File, DstAbs: dstAbs, TalkIdx: talkIdx})
	}
	return plan
}

// LegacyFixes 扫描 root 下早期格式的成品名（"(YYYY)" 而非 "(PyBay YYYY)"），
// 生成批量修正计划。只看文件名，不读内容。
func LegacyFixes(root string) ([]Move, error) {
	root = filepath.Clean(root)

	var moves []Move
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		fixed, changed := rename.FixLegacyYear(name)
		if !changed {
			return nil
		}
		dstAbs := filepath.Join(filepath.Dir(path), fixed)
		if _, err := os.Stat(dstAbs); err == nil {
			return nil // 修正后的名字已存在：跳过，人工处理
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(name))
		moves = append(moves, Move{
			File: domain.VideoFile{
				AbsPath: path,
				RelPath: rel,
				Base:    strings.TrimSuffix(name, filepath.Ext(name)),
				Ext:     ext,
			},
			DstAbs:  dstAbs,
			TalkIdx: -1,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(moves, func(i, j int) bool { return moves[i].File.RelPath < moves[j].File.RelPath })
	return moves, nil
}
