// Package charset 把渲染好的 XML 文本编码为 --encoding 指定的字节序列。
package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// UnknownEncodingError 表示编码名无法识别（按 WHATWG 编码名表）。
type UnknownEncodingError struct {
	Name string
}

func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("未知编码：%q", e.Name)
}

// Lookup 按 WHATWG 名称/别名查找编码（大小写不敏感）。
func Lookup(name string) (encoding.Encoding, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(n)
	if err != nil {
		return nil, &UnknownEncodingError{Name: name}
	}
	return enc, nil
}

// Validate 只检查编码名是否可用（配置校验用）。
func Validate(name string) error {
	_, err := Lookup(name)
	return err
}

// Encode 把 s 编码为 name 指定的字节。
// 严格模式：目标编码无法表示的字符直接报错，不做替换。
func Encode(s, name string) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		return []byte(s), nil
	}
	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode as %s: %w", name, err)
	}
	return b, nil
}
