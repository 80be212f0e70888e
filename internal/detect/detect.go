// Package detect 用有序的启发式规则判定原始记录的类型。
package detect

import (
	"fmt"

	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// rule 是一条判定规则；rules 自上而下求值，第一条命中者胜出。
// 规则的顺序本身就是契约：同时满足多条规则的记录由顺序决定归属。
type rule struct {
	name  string
	kind  domain.Kind
	match func(domain.RawRecord) bool
}

var rules = []rule{
	{
		name: "scene:file-mapping",
		kind: domain.KindScene,
		match: func(r domain.RawRecord) bool {
			_, isMap := r.Map("file")
			return isMap && r.HasAny("file", "duration", "performers")
		},
	},
	{
		name: "performer:bio-fields",
		kind: domain.KindPerformer,
		match: func(r domain.RawRecord) bool {
			return r.HasAny("gender", "birthdate", "ethnicity", "measurements")
		},
	},
	{
		name: "gallery:folder-with-performers",
		kind: domain.KindGallery,
		match: func(r domain.RawRecord) bool {
			return r.HasAny("folder", "scenes") && r.Has("performers")
		},
	},
	{
		name: "scene:basic-metadata",
		kind: domain.KindScene,
		match: func(r domain.RawRecord) bool {
			return r.HasAny("title", "studio", "tags", "performers")
		},
	},
}

// Detect 返回第一条命中规则的类型；全部未命中时返回 KindUnknown。
// 纯函数：不修改 r。
func Detect(r domain.RawRecord) domain.Kind {
	k, _ := DetectRule(r)
	return k
}

// DetectRule 与 Detect 相同，但额外返回命中规则的名字（用于 verbose 日志）。
func DetectRule(r domain.RawRecord) (domain.Kind, string) {
	for _, rl := range rules {
		if rl.match(r) {
			return rl.kind, rl.name
		}
	}
	return domain.KindUnknown, ""
}

// ValidationError 表示记录缺少该类型最起码应有的字段。
type ValidationError struct {
	Kind    domain.Kind
	Missing []string // 至少应出现其中之一
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s record has none of the expected keys %v", e.Kind, e.Missing)
}

// Validate 只做最小的键存在性检查（不是 schema 校验）。
func Validate(r domain.RawRecord, kind domain.Kind) error {
	var want []string
	switch kind {
	case domain.KindScene:
		want = []string{"title", "file"}
	case domain.KindPerformer:
		want = []string{"name"}
	case domain.KindGallery:
		want = []string{"title", "folder"}
	default:
		return &domain.UnsupportedKindError{Kind: kind}
	}
	if r.HasAny(want...) {
		return nil
	}
	return &ValidationError{Kind: kind, Missing: want}
}
