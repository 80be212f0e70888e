// Package logging 构造全局使用的 zap logger（写 stderr；stdout 留给报告与结果输出）。
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 描述 logger 的级别与编码格式。
type Options struct {
	Level  string // debug|info|warn|error，默认 info
	Format string // console|json，默认 console

	// Output 为空时写 os.Stderr（测试可替换）。
	Output zapcore.WriteSyncer
}

// New 按 opts 构造 logger。
func New(opts Options) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(defaultString(opts.Level, "info")))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(defaultString(opts.Format, "console")) {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("log format 只能是 console/json，实际是 %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = zapcore.Lock(os.Stderr)
	}
	return zap.New(zapcore.NewCore(enc, out, lvl)), nil
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
