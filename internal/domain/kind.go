package domain

import (
	"fmt"
	"strings"
)

// Kind 是输入记录的类型（决定映射规则与输出的 XML 词汇）。
//
// 零值 KindUnknown 表示无法识别；调用方必须把它当作 UnsupportedKindError 处理。
type Kind string

const (
	KindUnknown   Kind = ""
	KindScene     Kind = "scene"
	KindPerformer Kind = "performer"
	KindGallery   Kind = "gallery"
)

// ParseKind 解析 CLI/配置中的类型名（大小写不敏感）。
// "auto" 与空串都返回 KindUnknown 且 ok=true（表示交给 TypeDetector）。
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindUnknown, true
	case "scene":
		return KindScene, true
	case "performer":
		return KindPerformer, true
	case "gallery":
		return KindGallery, true
	default:
		return KindUnknown, false
	}
}

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// Valid 报告 k 是否为三种受支持的类型之一。
func (k Kind) Valid() bool {
	switch k {
	case KindScene, KindPerformer, KindGallery:
		return true
	default:
		return false
	}
}

// UnsupportedKindError 表示类型无法识别或当前组件不支持该类型（致命错误，直接上抛）。
type UnsupportedKindError struct {
	Kind Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported record kind: %q", e.Kind.String())
}
