// Package source 读取记录文件（JSON / YAML）并得到 RawRecord。
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// Format 是记录文件的序列化格式。
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor 按扩展名推断格式；未知扩展名按 JSON 处理。
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// FormatError 表示文件内容无法解析为记录（上层映射为 error_code=parse_failed）。
type FormatError struct {
	Path   string
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid %s record: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("invalid %s record %q: %v", e.Format, e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func IsFormatError(err error) bool {
	var e *FormatError
	return errors.As(err, &e)
}

var errNotMapping = errors.New("top level must be a mapping")

// LoadFile 读取并解析 path。读文件失败原样返回（*fs.PathError）。
func LoadFile(path string) (domain.RawRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := FormatFor(path)
	raw, err := Decode(b, format)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return raw, nil
}

// Decode 按 format 解析 b。
//
// 约束：
// - JSON 使用 UseNumber：数字保留字面量（"4" 与 4.0 的输出文本不同）
// - 顶层必须是映射；JSON 之后不允许有多余内容
func Decode(b []byte, format Format) (domain.RawRecord, error) {
	var (
		v   any
		err error
	)
	switch format {
	case FormatYAML:
		v, err = decodeYAML(b)
	default:
		format = FormatJSON
		v, err = decodeJSON(b)
	}
	if err != nil {
		return nil, &FormatError{Format: format, Err: err}
	}
	raw, ok := domain.AsMap(v)
	if !ok {
		return nil, &FormatError{Format: format, Err: errNotMapping}
	}
	return raw, nil
}

// DecodeJSON 是 Decode(b, FormatJSON) 的简写。
func DecodeJSON(b []byte) (domain.RawRecord, error) {
	return Decode(b, FormatJSON)
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeYAML(b []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	keepTimestampsAsText(&doc)
	var v any
	if err := doc.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeYAML(v), nil
}

// keepTimestampsAsText 把未加引号的日期/时间标量改标为 !!str。
// yaml.v3 默认把 `date: 2023-12-25` 解成 time.Time；记录字段需要原样的字面量。
// 别名节点指向树内已有的节点，不需要单独处理。
func keepTimestampsAsText(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" {
		n.Tag = "!!str"
		return
	}
	for _, c := range n.Content {
		keepTimestampsAsText(c)
	}
}

// normalizeYAML 把 yaml.v3 可能产出的 map[any]any（非字符串键）转成 map[string]any。
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeYAML(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = normalizeYAML(e)
		}
		return x
	default:
		return v
	}
}
