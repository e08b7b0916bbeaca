package domain

import "fmt"

// Speaker 是讲者姓名的最小结构。First/Last 允许为空（来源数据不完整时）。
//
// 注意：来源数据里存在 lastname 为 "." 的脏数据（例如 "Aastha ."），
// 清洗在加载阶段完成；domain 层不再处理。
type Speaker struct {
	First string `json:"firstname"`
	Last  string `json:"lastname"`
}

// FullName 返回用于展示/文件名的讲者全名。
// 规则：first/last 以单个空格连接；缺失的一侧省略；两者都缺失返回空串
// （占位符由 rename 层统一处理，domain 不做展示决策）。
func (s Speaker) FullName() string {
	switch {
	case s.First != "" && s.Last != "":
		return s.First + " " + s.Last
	case s.First != "":
		return s.First
	default:
		return s.Last
	}
}

// TalkRecord 是一条权威日程记录（来自 pybay.org 抓取或本地 JSON）。
//
// 约束：
// - 加载后不可变；匹配引擎与 fuzzy 匹配只读消费
// - Start 必须是规范化后的 24 小时 "HHMM"（加载阶段完成规范化）
// - 身份 = (Room, Start, Year)；重复条目靠 catalog 下标区分
type TalkRecord struct {
	Title       string    `json:"talk_title"`
	Description string    `json:"description"`
	Speakers    []Speaker `json:"speakers"`
	Room        string    `json:"room"`
	Start       string    `json:"-"`
	RawTime     string    `json:"start_time"`
	Year        int       `json:"-"`
	ID          string    `json:"id"`
}

// Key 返回谈话的身份串（用于排序/诊断，不用于去重——重复条目是允许的）。
func (t TalkRecord) Key() string {
	return fmt.Sprintf("%s|%s|%d", t.Room, t.Start, t.Year)
}
