// Package timeofday 把形态各异的时间串规范化为统一的 24 小时表示。
// 所有时间比较都必须基于规范形式，原始串只留作诊断。
package timeofday

import (
	"fmt"
	"strings"
)

// NormalizeError 表示时间串无法规范化（无数字，或时/分越界）。
// 调用方通常把它降级为"时间记号缺失"，而不是当作致命错误。
type NormalizeError struct {
	Raw    string
	Reason string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("无法规范化时间 %q：%s", e.Raw, e.Reason)
}

// Normalize 把时间串转成 4 位零填充的 24 小时 "HHMM"。
//
// 接受的形态：
// - 裸 3–4 位军用时间："1000"、"930"（3 位按 H MM 解释）
// - "H:MM am/pm"、"HHam/pm"（无分钟）；am/pm 前可有可无空格，大小写不敏感
//
// 规则：
//   - 裸 4 位数字按字面采信，不假设 am/pm。会议日程在一天之内，
//     0900 与 2100 理论上可碰撞，但实际输入不会；这是明确保留的简化，
//     不要用"日间约定"去悄悄修正。
//   - pm：1–11 点 +12，12 点不变；am：12 点归 0，1–11 点不变
//   - 纯函数；容忍两侧空白与标点
func Normalize(raw string) (string, error) {
	lower := strings.ToLower(raw)

	var digits []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) == 0 {
		return "", &NormalizeError{Raw: raw, Reason: "没有可提取的数字"}
	}

	var hour, minute int
	switch len(digits) {
	case 4:
		hour = int(digits[0]-'0')*10 + int(digits[1]-'0')
		minute = int(digits[2]-'0')*10 + int(digits[3]-'0')
	case 3:
		hour = int(digits[0] - '0')
		minute = int(digits[1]-'0')*10 + int(digits[2]-'0')
	case 2:
		hour = int(digits[0]-'0')*10 + int(digits[1]-'0')
	case 1:
		hour = int(digits[0] - '0')
	default:
		return "", &NormalizeError{Raw: raw, Reason: fmt.Sprintf("数字位数过多（%d 位）", len(digits))}
	}

	switch {
	case strings.Contains(lower, "pm"):
		if hour != 12 {
			hour += 12
		}
	case strings.Contains(lower, "am"):
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 {
		return "", &NormalizeError{Raw: raw, Reason: fmt.Sprintf("小时越界：%d", hour)}
	}
	if minute > 59 {
		return "", &NormalizeError{Raw: raw, Reason: fmt.Sprintf("分钟越界：%d", minute)}
	}

	return fmt.Sprintf("%02d%02d", hour, minute), nil
}
