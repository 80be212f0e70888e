// Package convert 串起单条记录的完整转换：检测类型 → 映射 → 渲染 → 编码写出（+ 图片抽取）。
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/app/planner"
	"github.com/John-Robertt/stash2nfo/internal/detect"
	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/charset"
	"github.com/John-Robertt/stash2nfo/internal/infra/fsx"
	"github.com/John-Robertt/stash2nfo/internal/infra/imgx"
	"github.com/John-Robertt/stash2nfo/internal/mapper"
	"github.com/John-Robertt/stash2nfo/internal/nfo"
	"github.com/John-Robertt/stash2nfo/internal/source"
)

// Options 控制单条记录的渲染。
type Options struct {
	// Kind 为 KindUnknown 时自动检测。
	Kind     domain.Kind
	Encoding string
	Pretty   bool
}

// Result 是一次内存内转换的结果。
type Result struct {
	Kind domain.Kind
	XML  string
}

// Convert 把 raw 转换为 XML 文本。
//
// 约束：
// - 未指定类型且检测失败时返回 *domain.UnsupportedKindError
// - 最小字段校验失败只记 warn，不中断转换
func Convert(raw domain.RawRecord, opts Options, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	kind := opts.Kind
	if kind == domain.KindUnknown {
		k, rule := detect.DetectRule(raw)
		if k == domain.KindUnknown {
			return Result{}, &domain.UnsupportedKindError{Kind: k}
		}
		log.Debug("detected record kind", zap.Stringer("kind", k), zap.String("rule", rule))
		kind = k
	}

	if err := detect.Validate(raw, kind); err != nil {
		var ve *detect.ValidationError
		if !errors.As(err, &ve) {
			return Result{}, err
		}
		log.Warn("record looks incomplete", zap.Stringer("kind", kind), zap.Strings("missing_any_of", ve.Missing))
	}

	rec, err := mapper.Map(raw, kind)
	if err != nil {
		return Result{}, err
	}
	xml, err := nfo.Render(kind, rec, nfo.Options{Encoding: opts.Encoding, Pretty: opts.Pretty})
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: kind, XML: xml}, nil
}

// EncodeError 表示 XML 文本无法按目标编码输出（error_code=encode_failed）。
type EncodeError struct {
	Encoding string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("无法以 %s 编码输出：%v", e.Encoding, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// WriteOutput 按 encoding 编码 xml 并原子写入 path，返回写入的字节数。
//
// 规则：
// - overwrite=false 且目标已存在：返回 os.ErrExist（可用 errors.Is 判断）
// - 目标是目录等非普通文件：返回 *fsx.PathTypeConflictError
func WriteOutput(path, xml, encoding string, overwrite bool) (int, error) {
	b, err := charset.Encode(xml, encoding)
	if err != nil {
		return 0, &EncodeError{Encoding: encoding, Err: err}
	}
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if overwrite {
		err = fsx.WriteFileAtomicReplace(dir, name, b)
	} else {
		err = fsx.WriteFileAtomicNoOverwrite(dir, name, b)
	}
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// FileOptions 控制一次文件到文件的转换。
type FileOptions struct {
	Options

	Overwrite bool
	Images    bool
}

// FileResult 描述一次文件转换的产物。
type FileResult struct {
	Kind   domain.Kind
	Output string
	Bytes  int
	Images imgx.Result
}

// File 读取 input，转换后写到 output（为空时取 input 旁边的同名 .nfo）。
func File(ctx context.Context, input, output string, opts FileOptions, log *zap.Logger) (FileResult, error) {
	raw, err := source.LoadFile(input)
	if err != nil {
		return FileResult{}, err
	}
	if output == "" {
		output = planner.OutputPath(input)
	}
	return Record(ctx, raw, output, opts, log)
}

// Record 把已读取的 raw 转换并写到 output。
//
// 写入与图片抽取在输出目录锁内完成；NFO 写入失败时不抽取图片。
func Record(ctx context.Context, raw domain.RawRecord, output string, opts FileOptions, log *zap.Logger) (FileResult, error) {
	if log == nil {
		log = zap.NewNop()
	}

	res, err := Convert(raw, opts.Options, log)
	if err != nil {
		return FileResult{}, err
	}
	out := FileResult{Kind: res.Kind, Output: output}

	lock, err := fsx.LockDir(ctx, filepath.Dir(output))
	if err != nil {
		return out, err
	}
	defer lock.Unlock()

	n, err := WriteOutput(output, res.XML, opts.Encoding, opts.Overwrite)
	if err != nil {
		return out, err
	}
	out.Bytes = n
	log.Debug("wrote nfo", zap.String("output", output), zap.Int("bytes", n))

	if opts.Images {
		out.Images = imgx.Extract(raw, output, log)
	}
	return out, nil
}

// ErrorCode 把转换链路上的错误映射为报告中的 error_code。
func ErrorCode(err error) string {
	var (
		ue *domain.UnsupportedKindError
		ee *EncodeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ue):
		return domain.ErrCodeUnsupportedKind
	case source.IsFormatError(err):
		return domain.ErrCodeParseFailed
	case errors.As(err, &ee):
		return domain.ErrCodeEncodeFailed
	case errors.Is(err, os.ErrExist):
		return domain.ErrCodeTargetExists
	case fsx.IsPathTypeConflict(err):
		return domain.ErrCodeTargetConflict
	default:
		return domain.ErrCodeIOFailed
	}
}
