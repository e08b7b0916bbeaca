package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusMatched   = "matched"
	StatusReview    = "review"
	StatusAmbiguous = "ambiguous"
	StatusNoVideo   = "no_video"
	StatusFailed    = "failed"
)

const (
	FileStatusPlanned    = "planned"
	FileStatusRenamed    = "renamed"
	FileStatusRolledBack = "rolled_back"
	FileStatusFailed     = "failed"
)

const (
	ErrCodeNoRoomTime     = "no_room_time_match"
	ErrCodeAmbiguous      = "ambiguous_candidates"
	ErrCodeCatalogInvalid = "catalog_invalid"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeRenameFailed   = "rename_failed"

	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Path   string `json:"path"`
	Year   int    `json:"year"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Matched   int `json:"matched"`
	Review    int `json:"review"`
	Ambiguous int `json:"ambiguous"`
	NoVideo   int `json:"no_video"`
	Failed    int `json:"failed"`
}

type ItemResult struct {
	Talk string `json:"talk"`
	Room string `json:"room"`
	Time string `json:"time"` // 规范化 HHMM；合成条目允许为空

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Candidates 仅在 ambiguous 时非空：并列候选谈话的标题（已排序）。
	Candidates []string     `json:"candidates"`
	Files      []FileResult `json:"files"`
}

type FileResult struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`
}

// Finalize 做三件事：
//  1. 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
//  2. items 稳定排序：按 (room, time, talk) 字典序；三者全空的合成条目排在最后，
//     其内部按首个文件 src 排序——结果与输入枚举顺序无关
//  3. summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := sortKey(r.Items[i]), sortKey(r.Items[j])
		if (a == "") != (b == "") {
			return b == ""
		}
		if a != b {
			return a < b
		}
		return firstSrc(r.Items[i]) < firstSrc(r.Items[j])
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusMatched:
			s.Matched++
		case StatusReview:
			s.Review++
		case StatusAmbiguous:
			s.Ambiguous++
		case StatusNoVideo:
			s.NoVideo++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

func sortKey(it ItemResult) string {
	if it.Room == "" && it.Time == "" && it.Talk == "" {
		return ""
	}
	return it.Room + "\x00" + it.Time + "\x00" + it.Talk
}

func firstSrc(it ItemResult) string {
	if len(it.Files) == 0 {
		return ""
	}
	return it.Files[0].Src
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
