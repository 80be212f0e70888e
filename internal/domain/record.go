package domain

// Normalized 是 FieldMapper 产出、XmlRenderer 消费的类型化中间记录。
// 每次转换新建，渲染后丢弃。
type Normalized interface {
	RecordKind() Kind
}

// Movie 是 Scene / Gallery 的规范化结果（渲染为 <movie>）。
//
// 约束：
// - 文本字段缺失时为空串（渲染为空元素，而不是省略）
// - Premiered/Year/Studio/Runtime/UniqueID 为零值时整元素省略
type Movie struct {
	Kind Kind

	Title         string
	OriginalTitle string
	Plot          string

	// UserRating 仅在 UserRatingSet=true 时有意义；未设置时渲染为 "0"。
	UserRating    float64
	UserRatingSet bool

	Premiered string // YYYY-MM-DD（或无法识别时的原始串）
	Year      int
	Studio    string
	Runtime   int // 分钟

	UniqueID *UniqueID

	// Genres 保持输入顺序；空串在渲染时跳过。
	Genres []string
	Actors []ActorEntry

	MediaType string // Gallery 为 "gallery"
}

func (m *Movie) RecordKind() Kind { return m.Kind }

// ActorEntry 的 Order 是输入列表中的原始下标（跳过的条目不会让后续下标前移）。
type ActorEntry struct {
	Name  string
	Role  string
	Order int
}

// UniqueID 只在源记录有 url 时存在。
type UniqueID struct {
	Type    string
	Value   string
	Default bool
}

// UniqueIDType 是 uniqueid 的固定 type 属性值。
const UniqueIDType = "stash"

// MediaTypeGallery 标记由 Gallery 转换而来的 Movie。
const MediaTypeGallery = "gallery"

// Performer 是演员记录的规范化结果（渲染为 <actor>）。
type Performer struct {
	Name      string
	Biography string
	Birthdate string

	Details PerformerDetails
	Social  SocialLinks
}

func (*Performer) RecordKind() Kind { return KindPerformer }

// PerformerDetails 的字段顺序即渲染顺序。空串表示源值为假，渲染时跳过。
type PerformerDetails struct {
	Gender       string
	Ethnicity    string
	Country      string
	EyeColor     string
	Height       string
	Measurements string
	Tattoos      string
	Piercings    string
	Aliases      []string
}

// Field 是 details/social 中的一项：Tag 即输出元素名。
type Field struct {
	Tag    string
	Values []string
}

// Fields 按固定顺序展开 details（aliases 为多值）。
func (d PerformerDetails) Fields() []Field {
	return []Field{
		{Tag: "gender", Values: []string{d.Gender}},
		{Tag: "ethnicity", Values: []string{d.Ethnicity}},
		{Tag: "country", Values: []string{d.Country}},
		{Tag: "eye_color", Values: []string{d.EyeColor}},
		{Tag: "height", Values: []string{d.Height}},
		{Tag: "measurements", Values: []string{d.Measurements}},
		{Tag: "tattoos", Values: []string{d.Tattoos}},
		{Tag: "piercings", Values: []string{d.Piercings}},
		{Tag: "aliases", Values: d.Aliases},
	}
}

type SocialLinks struct {
	URL       string
	Twitter   string
	Instagram string
}

func (s SocialLinks) Fields() []Field {
	return []Field{
		{Tag: "url", Values: []string{s.URL}},
		{Tag: "twitter", Values: []string{s.Twitter}},
		{Tag: "instagram", Values: []string{s.Instagram}},
	}
}
