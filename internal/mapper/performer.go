package mapper

import (
	"strings"

	"github.com/John-Robertt/stash2nfo/internal/datex"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// bioLines 是简介的固定行序（Aliases 单独处理，总是最后一行）。
var bioLines = []struct {
	label string
	key   string
}{
	{"Gender", "gender"},
	{"Ethnicity", "ethnicity"},
	{"Country", "country"},
	{"Height", "height"},
	{"Measurements", "measurements"},
	{"Eye Color", "eye_color"},
	{"Career Length", "career_length"},
	{"Tattoos", "tattoos"},
	{"Piercings", "piercings"},
}

func mapPerformer(raw domain.RawRecord) *domain.Performer {
	p := &domain.Performer{
		Name:      raw.Text("name"),
		Biography: Biography(raw),
		Details: domain.PerformerDetails{
			Gender:       raw.Text("gender"),
			Ethnicity:    raw.Text("ethnicity"),
			Country:      raw.Text("country"),
			EyeColor:     raw.Text("eye_color"),
			Height:       raw.Text("height"),
			Measurements: raw.Text("measurements"),
			Tattoos:      raw.Text("tattoos"),
			Piercings:    raw.Text("piercings"),
			Aliases:      aliasList(raw["aliases"]),
		},
		Social: domain.SocialLinks{
			URL:       raw.Text("url"),
			Twitter:   raw.Text("twitter"),
			Instagram: raw.Text("instagram"),
		},
	}
	if b := raw.Text("birthdate"); b != "" {
		p.Birthdate = datex.Normalize(b)
	}
	return p
}

// Biography 合成演员简介：每个真值字段一行 "Label: value"，以换行连接。
//
// 约束：
// - 行序固定（见 bioLines），Aliases 只在 aliases 为非空列表时追加到最后
// - 没有任何真值字段时返回空串
func Biography(raw domain.RawRecord) string {
	var lines []string
	for _, l := range bioLines {
		if v := raw.Text(l.key); v != "" {
			lines = append(lines, l.label+": "+v)
		}
	}
	if aliases, ok := raw.List("aliases"); ok && len(aliases) > 0 {
		names := make([]string, 0, len(aliases))
		for _, a := range aliases {
			if a == nil {
				names = append(names, "")
				continue
			}
			names = append(names, domain.Stringify(a))
		}
		lines = append(lines, "Aliases: "+strings.Join(names, ", "))
	}
	return strings.Join(lines, "\n")
}

// aliasList 保留列表形态；单个标量别名视为一项。列表内的假值保留为空串，渲染时跳过。
func aliasList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, a := range x {
			out = append(out, domain.Text(a))
		}
		return out
	default:
		if s := domain.Text(v); s != "" {
			return []string{s}
		}
		return nil
	}
}
