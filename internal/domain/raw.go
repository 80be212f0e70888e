package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawRecord 是来自 Stash 的原始记录（无类型的 JSON/YAML 映射）。
//
// 约束：
// - 核心只读不写；所有权属于产生它的调用方
// - 值的形态只会是 encoding/json(UseNumber) 或 yaml.v3 的解码结果
type RawRecord map[string]any

// Has 报告 key 是否存在（与值是否为空无关）。
func (r RawRecord) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// HasAny 报告 keys 中是否至少有一个存在。
func (r RawRecord) HasAny(keys ...string) bool {
	for _, k := range keys {
		if r.Has(k) {
			return true
		}
	}
	return false
}

// Map 返回 key 对应的映射值；不是映射时 ok=false。
func (r RawRecord) Map(key string) (RawRecord, bool) {
	return AsMap(r[key])
}

// List 返回 key 对应的列表值；不是列表时 ok=false。
func (r RawRecord) List(key string) ([]any, bool) {
	v, ok := r[key].([]any)
	return v, ok
}

// Text 返回 key 对应值的文本形态；假值一律得到空串。
func (r RawRecord) Text(key string) string {
	return Text(r[key])
}

// AsMap 把 JSON/YAML 解码出的映射统一为 RawRecord。
func AsMap(v any) (RawRecord, bool) {
	switch m := v.(type) {
	case RawRecord:
		return m, true
	case map[string]any:
		return RawRecord(m), true
	default:
		return nil, false
	}
}

// Truthy 按源系统的真值语义判断：nil、空串、数值 0、false、空列表/空映射为假。
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x != ""
		}
		return f != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case RawRecord:
		return len(x) > 0
	default:
		return true
	}
}

// Text 把标量值转换为输出文本；假值得到空串。
//
// 规则：字符串原样；json.Number 取字面量；整数十进制；浮点数取最短往返形式且整数值补 ".0"；
// 布尔值写作 True/False。
func Text(v any) string {
	if !Truthy(v) {
		return ""
	}
	return Stringify(v)
}

// Stringify 与 Text 相同，但不对假值做特殊处理（例如 0 => "0"）。
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return FormatFloat(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Number 把数值或数值字符串解析为 float64。
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(strings.TrimSpace(x.String()), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// FormatFloat 以 repr 风格输出浮点数：8 => "8.0"，7.5 => "7.5"，1e16 => "1e+16"。
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp := 0
	if i := strings.LastIndexByte(sci, 'e'); i >= 0 {
		exp, _ = strconv.Atoi(sci[i+1:])
	}
	if exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
