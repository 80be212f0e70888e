// Package datex 把多种常见日期写法规范化为 YYYY-MM-DD。
package datex

import (
	"strings"
	"time"
)

// ISOLayout 是规范化后的输出格式，也是 StrictYear 唯一接受的格式。
const ISOLayout = "2006-01-02"

// layouts 的顺序即尝试顺序（先命中者胜出）。
// 月/日允许一位或两位数字，年份固定四位。
var layouts = []string{
	"2006-1-2", // 2023-12-25
	"2/1/2006", // 25/12/2023
	"1/2/2006", // 12/25/2023
	"2-1-2006", // 25-12-2023
	"1-2-2006", // 12-25-2023
}

// Normalize 尽力把 s 规范化为 YYYY-MM-DD。
//
// 规则：
// - 空串返回空串
// - 第一个 'T' 之后的时间部分直接丢弃（只切分，不解析）
// - 全部格式都不匹配时原样返回 s（不是错误）
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	datePart, _, _ := strings.Cut(s, "T")
	for _, layout := range layouts {
		t, err := time.Parse(layout, datePart)
		if err != nil {
			continue
		}
		return t.Format(ISOLayout)
	}
	return s
}

// StrictYear 把完整的原始串按 YYYY-MM-DD 解析并返回年份。
// 不做 'T' 切分：带时间的串会失败，这与 Normalize 的宽松行为刻意不同。
func StrictYear(s string) (int, bool) {
	t, err := time.Parse(layouts[0], s)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}
