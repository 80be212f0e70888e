package imgx

import "bytes"

// DefaultExt 是无法识别签名时使用的扩展名（不跳过，按 jpg 写出）。
const DefaultExt = "jpg"

type signature struct {
	magic  []byte
	offset int
	ext    string
}

// signatures 按顺序匹配；WEBP 额外要求前 4 字节为 "RIFF"（见 Sniff）。
var signatures = []signature{
	{magic: []byte{0xFF, 0xD8, 0xFF}, ext: "jpg"},
	{magic: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, ext: "png"},
	{magic: []byte("GIF87a"), ext: "gif"},
	{magic: []byte("GIF89a"), ext: "gif"},
	{magic: []byte("WEBP"), offset: 8, ext: "webp"},
	{magic: []byte("BM"), ext: "bmp"},
}

// Sniff 按文件头识别图片格式并返回扩展名（不含 '.'）。
// 任何未知的字节序列都返回 DefaultExt。
func Sniff(b []byte) string {
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(b) < end || !bytes.Equal(b[s.offset:end], s.magic) {
			continue
		}
		if s.ext == "webp" && !bytes.HasPrefix(b, []byte("RIFF")) {
			continue
		}
		return s.ext
	}
	return DefaultExt
}
