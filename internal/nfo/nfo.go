// Package nfo 把规范化记录渲染为 Kodi/Jellyfin/Emby 可读取的 NFO（XML）。
package nfo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// DefaultEncoding 是 XML 声明里默认写出的编码名。
const DefaultEncoding = "utf-8"

// Options 控制序列化形态；零值即紧凑输出 + utf-8 声明。
type Options struct {
	// Encoding 只影响 XML 声明里的 encoding 属性；字节编码由调用方负责。
	Encoding string
	Pretty   bool
}

// Render 把 rec 渲染为完整的 XML 文本（带声明）。
//
// 规则：
// - Scene/Gallery => <movie>；Performer => <actor>
// - kind 不受支持或与 rec 的实际类型不符时返回 *domain.UnsupportedKindError
// - 同一输入的输出逐字节稳定
func Render(kind domain.Kind, rec domain.Normalized, opts Options) (string, error) {
	doc := etree.NewDocument()
	switch kind {
	case domain.KindScene, domain.KindGallery:
		m, ok := rec.(*domain.Movie)
		if !ok {
			return "", &domain.UnsupportedKindError{Kind: kind}
		}
		buildMovie(doc, m)
	case domain.KindPerformer:
		p, ok := rec.(*domain.Performer)
		if !ok {
			return "", &domain.UnsupportedKindError{Kind: kind}
		}
		buildActor(doc, p)
	default:
		return "", &domain.UnsupportedKindError{Kind: kind}
	}
	return serialize(doc, opts)
}

func buildMovie(doc *etree.Document, m *domain.Movie) {
	root := doc.CreateElement("movie")

	addText(root, "title", m.Title)
	addText(root, "originaltitle", m.OriginalTitle)
	addText(root, "plot", m.Plot)
	addText(root, "userrating", userRatingText(m))

	if m.Premiered != "" {
		addText(root, "premiered", m.Premiered)
	}
	if m.Year != 0 {
		addText(root, "year", strconv.Itoa(m.Year))
	}
	if m.Studio != "" {
		addText(root, "studio", m.Studio)
	}
	if m.Runtime != 0 {
		addText(root, "runtime", strconv.Itoa(m.Runtime))
	}

	if id := m.UniqueID; id != nil {
		el := root.CreateElement("uniqueid")
		el.CreateAttr("type", id.Type)
		if id.Default {
			el.CreateAttr("default", "true")
		}
		el.SetText(id.Value)
	}

	// genre 与 tag 是同一个列表的两份拷贝（媒体库分别读取）。
	for _, g := range m.Genres {
		if g != "" {
			addText(root, "genre", g)
		}
	}
	for _, g := range m.Genres {
		if g != "" {
			addText(root, "tag", g)
		}
	}

	for _, a := range m.Actors {
		el := root.CreateElement("actor")
		if a.Name != "" {
			addText(el, "name", a.Name)
		}
		if a.Role != "" {
			addText(el, "role", a.Role)
		}
		addText(el, "order", strconv.Itoa(a.Order))
	}
}

func buildActor(doc *etree.Document, p *domain.Performer) {
	root := doc.CreateElement("actor")

	addText(root, "name", p.Name)
	if p.Biography != "" {
		addText(root, "biography", p.Biography)
	}
	if p.Birthdate != "" {
		addText(root, "birthdate", p.Birthdate)
	}
	addFields(root, p.Details.Fields())
	addFields(root, p.Social.Fields())
}

// addFields 按固定顺序输出 details/social：每个非空值一个元素，元素名即字段名。
func addFields(parent *etree.Element, fields []domain.Field) {
	for _, f := range fields {
		for _, v := range f.Values {
			if v != "" {
				addText(parent, f.Tag, v)
			}
		}
	}
}

// addText 总是显式设置文本：空文本也写成 <x></x>，而不是自闭合。
func addText(parent *etree.Element, tag, text string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(text)
	return el
}

// userRatingText：未设置评分时写 "0"，否则写浮点数（8 => "8.0"）。
func userRatingText(m *domain.Movie) string {
	if !m.UserRatingSet {
		return "0"
	}
	return domain.FormatFloat(m.UserRating)
}

func serialize(doc *etree.Document, opts Options) (string, error) {
	enc := strings.TrimSpace(opts.Encoding)
	if enc == "" {
		enc = DefaultEncoding
	}

	doc.WriteSettings.CanonicalEndTags = true
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true

	if opts.Pretty {
		doc.Indent(2)
	}
	body, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize nfo: %w", err)
	}
	// CanonicalText 会把 \r 写成 &#xD;；文本只转义 & < >。
	// 用户文本里的字面量 "&#xD;" 已被转义为 "&amp;#xD;"，不会被误替换。
	body = strings.ReplaceAll(body, "&#xD;", "\r")

	decl := Declaration(enc)
	if !opts.Pretty {
		return decl + body, nil
	}
	return decl + "\n" + dropBlankLines(body), nil
}

// Declaration 返回字面量 XML 声明（不含换行）。
func Declaration(encoding string) string {
	return `<?xml version="1.0" encoding="` + encoding + `" standalone="yes" ?>`
}

func dropBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
