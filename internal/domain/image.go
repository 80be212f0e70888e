package domain

// ImageKind 是抽取出的图片在媒体库中的角色。
type ImageKind string

const (
	ImagePoster ImageKind = "poster"
	ImageThumb  ImageKind = "thumb"
	ImageFanart ImageKind = "fanart"
)

// ImageArtifact 描述一次抽取写出的图片文件。
// 只作为 Extract 的返回值存在，不在任何对象上跨调用保留。
type ImageArtifact struct {
	Kind     ImageKind `json:"kind"`
	Filename string    `json:"filename"`
	Size     int       `json:"size"`
}
