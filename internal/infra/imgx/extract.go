// Package imgx 从原始记录里抽取内嵌的 base64 图片，并写到输出文件旁边。
package imgx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/fsx"
)

// candidate 是一个候选源字段及其在媒体库中的角色。
type candidate struct {
	key  string
	kind domain.ImageKind
}

// candidates 的顺序即扫描顺序。
var candidates = []candidate{
	{"cover", domain.ImagePoster},
	{"image", domain.ImageThumb},
	{"poster", domain.ImagePoster},
	{"thumbnail", domain.ImageThumb},
	{"fanart", domain.ImageFanart},
}

// Skip 记录一个被跳过的候选字段及原因。
type Skip struct {
	Key string
	Err error
}

// Result 是单次 Extract 的结果；每次调用都是全新的值。
type Result struct {
	Artifacts []domain.ImageArtifact
	Skipped   []Skip
}

// Filenames 按写出顺序返回文件名。
func (r Result) Filenames() []string {
	out := make([]string, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		out = append(out, a.Filename)
	}
	return out
}

var (
	errMissingComma = errors.New("data URI 缺少逗号")
	errEmptyPayload = errors.New("解码结果为空")
)

// Extract 扫描 raw 中的候选图片字段，解码后写到 outputPath 所在目录。
//
// 约束：
// - 单个字段失败（解码/写入）只跳过该字段，不影响后续字段；失败记入 Skipped 并以 warn 记录日志
// - 同名文件直接覆盖，不询问
// - poster/fanart 命名为 "<role>.<ext>"；thumb 命名为 "<输出文件名去扩展名>-thumb.<ext>"
// - 同一目录的并发调用会竞争同名文件，需要调用方串行化（见 fsx.LockDir）
func Extract(raw domain.RawRecord, outputPath string, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(outputPath)
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))

	var res Result
	for _, c := range candidates {
		s, ok := raw[c.key].(string)
		if !ok || s == "" {
			continue
		}
		a, err := extractOne(c, s, dir, base)
		if err != nil {
			log.Warn("skip embedded image",
				zap.String("key", c.key),
				zap.String("dir", dir),
				zap.Error(err),
			)
			res.Skipped = append(res.Skipped, Skip{Key: c.key, Err: err})
			continue
		}
		log.Debug("extracted embedded image",
			zap.String("key", c.key),
			zap.String("file", a.Filename),
			zap.Int("bytes", a.Size),
		)
		res.Artifacts = append(res.Artifacts, a)
	}
	return res
}

func extractOne(c candidate, payload, dir, base string) (domain.ImageArtifact, error) {
	data, err := Decode(payload)
	if err != nil {
		return domain.ImageArtifact{}, err
	}
	name := Filename(c.kind, base, Sniff(data))
	if err := fsx.WriteFileAtomicReplace(dir, name, data); err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	return domain.ImageArtifact{Kind: c.kind, Filename: name, Size: len(data)}, nil
}

// Decode 去掉可选的 data URI 前缀并做 base64 解码。
// 忽略空白；先按标准（带 padding）字母表解码，失败再按无 padding 解码。
func Decode(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		_, rest, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, errMissingComma
		}
		payload = rest
	}
	payload = strings.Join(strings.Fields(payload), "")

	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rawErr error
		b, rawErr = base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
	}
	if len(b) == 0 {
		return nil, errEmptyPayload
	}
	return b, nil
}

// Filename 计算图片文件名。
func Filename(kind domain.ImageKind, base, ext string) string {
	if kind == domain.ImageThumb {
		return base + "-thumb." + ext
	}
	return string(kind) + "." + ext
}
