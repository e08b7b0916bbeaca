package domain

// FilenameTokens 是从原始文件名分解出的候选记号集。
//
// 约束：缺失字段就是空串，缺失是一等值——匹配引擎把缺失当作该维度
// 不命中，而不是失败。Tokens 随匹配结束丢弃，不持久化。
type FilenameTokens struct {
	Room  string // 第一段（可能缺失）
	Time  string // 原始时间串，尚未规范化（可能缺失）
	Name  string // 时间段之后紧邻的姓名片段（可能缺失）
	Title string // 剩余部分（标题本身可能含分隔符，按原分隔符重新拼接）
}
