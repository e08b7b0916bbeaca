package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pybay-video/PVMC/internal/domain"
	"github.com/pybay-video/PVMC/internal/infra/fsx"
	"github.com/pybay-video/PVMC/internal/timeofday"
)

// Store 提供扫描根目录下谈话目录文件的读写。
//
// 目录文件名固定为 _pybay_<year>_talk_data.json（"_" 前缀保证扫描阶段跳过）。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
type Store struct {
	Root     string // <path>（扫描根目录）
	ReadOnly bool
}

var ErrReadOnly = errors.New("catalog: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// ValidationError 表示目录中某条谈话记录不满足硬约束。
// 目录无效是致命错误：带着残缺目录继续匹配只会产出错误的改名。
type ValidationError struct {
	Index  int
	Title  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog: 第 %d 条记录无效（%q）：%s", e.Index, e.Title, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FileName 返回某一年谈话目录的文件名。
func FileName(year int) string {
	return fmt.Sprintf("_pybay_%d_talk_data.json", year)
}

// Path 返回谈话目录文件的绝对路径。
func (s Store) Path(year int) string {
	return filepath.Join(s.Root, FileName(year))
}

// Load 读取并校验本地谈话目录。
// 文件不存在不是错误（返回 ok=false，调用方转去抓取）；
// 文件存在但内容无效是致命错误。
func (s Store) Load(year int) ([]domain.TalkRecord, bool, error) {
	b, err := os.ReadFile(s.Path(year))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var talks []domain.TalkRecord
	if err := json.Unmarshal(b, &talks); err != nil {
		return nil, false, fmt.Errorf("catalog: 解析 %s 失败：%w", FileName(year), err)
	}

	prepared, err := Prepare(talks, year)
	if err != nil {
		return nil, false, err
	}
	return prepared, true, nil
}

// Save 把谈话目录原子落盘（apply 模式专用）。
func (s Store) Save(year int, talks []domain.TalkRecord) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	b, err := json.MarshalIndent(talks, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(s.Root, FileName(year), b)
}

// Prepare 校验并规范化谈话记录（本地加载与在线抓取共用同一入口）。
//
// 规则：
// - room 与 start_time 必须非空（匹配引擎的资格判定依赖两者）
// - start_time 必须能规范化为 24 小时 "HHMM"，结果写入 Start
// - 讲者姓名去掉首尾空白；纯标点的 lastname（如 "."）清洗为空串
func Prepare(talks []domain.TalkRecord, year int) ([]domain.TalkRecord, error) {
	out := make([]domain.TalkRecord, 0, len(talks))
	for i, t := range talks {
		t.Title = strings.TrimSpace(t.Title)
		t.Room = strings.TrimSpace(t.Room)
		t.RawTime = strings.TrimSpace(t.RawTime)

		if t.Room == "" {
			return nil, &ValidationError{Index: i, Title: t.Title, Reason: "room 为空"}
		}
		if t.RawTime == "" {
			return nil, &ValidationError{Index: i, Title: t.Title, Reason: "start_time 为空"}
		}
		start, err := timeofday.Normalize(t.RawTime)
		if err != nil {
			return nil, &ValidationError{Index: i, Title: t.Title, Reason: fmt.Sprintf("start_time 无法规范化：%v", err)}
		}
		t.Start = start
		t.Year = year

		speakers := make([]domain.Speaker, len(t.Speakers))
		for j, sp := range t.Speakers {
			speakers[j] = cleanSpeaker(sp)
		}
		t.Speakers = speakers

		out = append(out, t)
	}
	return out, nil
}

func cleanSpeaker(sp domain.Speaker) domain.Speaker {
	sp.First = strings.TrimSpace(sp.First)
	sp.Last = strings.TrimSpace(sp.Last)
	// 来源数据存在 lastname 为 "." 的脏数据；纯标点视同缺失。
	if strings.Trim(sp.Last, ".-_ ") == "" {
		sp.Last = ""
	}
	if strings.Trim(sp.First, ".-_ ") == "" {
		sp.First = ""
	}
	return sp
}
