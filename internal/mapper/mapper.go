// Package mapper 把原始 Stash 记录按类型映射为类型化的规范化记录。
//
// 约束：
// - 纯函数：不修改输入，不持有跨调用状态
// - 日期/评分/时长的解析失败一律就地恢复为安全默认值，不返回错误
// - 只有类型不受支持时才返回 *domain.UnsupportedKindError
package mapper

import (
	"math"

	"github.com/John-Robertt/stash2nfo/internal/datex"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// Map 按 kind 选择映射规则。
func Map(raw domain.RawRecord, kind domain.Kind) (domain.Normalized, error) {
	switch kind {
	case domain.KindScene:
		return mapScene(raw), nil
	case domain.KindGallery:
		return mapGallery(raw), nil
	case domain.KindPerformer:
		return mapPerformer(raw), nil
	default:
		return nil, &domain.UnsupportedKindError{Kind: kind}
	}
}

func mapScene(raw domain.RawRecord) *domain.Movie {
	m := mapMovieCommon(raw, domain.KindScene)
	m.UserRating, m.UserRatingSet = userRating(raw["rating"])
	m.Runtime = runtimeMinutes(raw)
	return m
}

func mapGallery(raw domain.RawRecord) *domain.Movie {
	m := mapMovieCommon(raw, domain.KindGallery)
	m.MediaType = domain.MediaTypeGallery
	return m
}

// mapMovieCommon 处理 Scene/Gallery 共享的字段。
func mapMovieCommon(raw domain.RawRecord, kind domain.Kind) *domain.Movie {
	title := raw.Text("title")
	m := &domain.Movie{
		Kind:          kind,
		Title:         title,
		OriginalTitle: title,
		Plot:          raw.Text("details"),
		Studio:        nameOf(raw["studio"]),
	}

	// premiered 与 year 故意来自两种解析：year 只认严格的 YYYY-MM-DD 原串。
	// 于是 "25/12/2023" 会得到 premiered=2023-12-25 但没有 year。
	if date, ok := raw["date"].(string); ok && date != "" {
		m.Premiered = datex.Normalize(date)
		if y, ok := datex.StrictYear(date); ok {
			m.Year = y
		}
	}

	if url := raw.Text("url"); url != "" {
		m.UniqueID = &domain.UniqueID{Type: domain.UniqueIDType, Value: url, Default: true}
	}

	if tags, ok := raw.List("tags"); ok {
		m.Genres = make([]string, 0, len(tags))
		for _, t := range tags {
			m.Genres = append(m.Genres, nameOf(t))
		}
	}

	if performers, ok := raw.List("performers"); ok {
		m.Actors = Actors(performers)
	}
	return m
}

// Actors 把 performers 列表转换为演员条目。
//
// 约束：
// - 字符串条目 => {name, role:""}；映射条目 => {name, role}
// - 其他类型的条目被跳过，但 Order 始终使用原始下标（不重新编号）
// - 不去重、不排序
func Actors(performers []any) []domain.ActorEntry {
	out := make([]domain.ActorEntry, 0, len(performers))
	for i, p := range performers {
		switch v := p.(type) {
		case string:
			out = append(out, domain.ActorEntry{Name: v, Order: i})
		default:
			m, ok := domain.AsMap(p)
			if !ok {
				continue
			}
			out = append(out, domain.ActorEntry{
				Name:  m.Text("name"),
				Role:  m.Text("role"),
				Order: i,
			})
		}
	}
	return out
}

// userRating 返回 rating*2；rating 缺失或非数值时 set=false（渲染为 0）。
func userRating(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, ok := domain.Number(v)
	if !ok {
		return 0, false
	}
	return f * 2, true
}

// runtimeMinutes 从 file.duration（秒）得出分钟数，截断取整。
// 没有 file 映射时退回到 files[0]（Stash API 的形态）。
func runtimeMinutes(raw domain.RawRecord) int {
	file, ok := raw.Map("file")
	if !ok && !raw.Has("file") {
		if files, isList := raw.List("files"); isList && len(files) > 0 {
			file, ok = domain.AsMap(files[0])
		}
	}
	if !ok {
		return 0
	}
	d := file["duration"]
	if !domain.Truthy(d) {
		return 0
	}
	secs, ok := domain.Number(d)
	if !ok || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0
	}
	mins := secs / 60
	// 超出 int 范围的时长视为无效。
	if mins >= float64(math.MaxInt) || mins <= float64(math.MinInt) {
		return 0
	}
	return int(mins)
}

// nameOf 用于 studio 与 tags 条目：接受字符串或 API 返回的 {name: ...} 对象。
// 假值得到空串（渲染时跳过）。
func nameOf(v any) string {
	if m, ok := domain.AsMap(v); ok {
		return m.Text("name")
	}
	return domain.Text(v)
}
