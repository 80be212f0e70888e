// Package config 发现并读取 stash2nfo.toml，并与 CLI 参数合并为最终配置。
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/stash2nfo/internal/infra/charset"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是 cwd 下自动发现的配置文件名。
	FileName = "stash2nfo.toml"

	DefaultScheme      = "http"
	DefaultHost        = "localhost"
	DefaultPort        = 9999
	DefaultEncoding    = "utf-8"
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"

	maxConcurrency = 32
)

// CLIArgs 是 CLI 可覆盖的配置项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --images=false 必须能覆盖 output.images=true。
type CLIArgs struct {
	ConfigPath string

	Encoding    string
	EncodingSet bool

	Pretty    bool
	PrettySet bool

	Overwrite    bool
	OverwriteSet bool

	Images    bool
	ImagesSet bool

	Concurrency    int
	ConcurrencySet bool

	// Verbose=true 强制 log.level=debug。
	Verbose bool
}

// FileConfig 对应 stash2nfo.toml 的解析结构。
type FileConfig struct {
	CacheDir string        `toml:"cache_dir"`
	Stash    StashSection  `toml:"stash"`
	Output   OutputSection `toml:"output"`
	Run      RunSection    `toml:"run"`
	Log      LogSection    `toml:"log"`
}

type StashSection struct {
	Scheme   string `toml:"scheme"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	APIKey   string `toml:"api_key"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	ProxyURL string `toml:"proxy_url"`
}

// OutputSection 的布尔项用指针区分“未设置”与“设置为 false”。
type OutputSection struct {
	Encoding  string `toml:"encoding"`
	Pretty    *bool  `toml:"pretty"`
	Overwrite *bool  `toml:"overwrite"`
	Images    *bool  `toml:"images"`
}

type RunSection struct {
	Concurrency int      `toml:"concurrency"`
	ExcludeDirs []string `toml:"exclude_dirs"`
}

type LogSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Stash 是合并后的 Stash 连接参数。
type Stash struct {
	Scheme   string
	Host     string
	Port     int
	APIKey   string
	Username string
	Password string
	ProxyURL string
}

// Effective 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type Effective struct {
	// File 是实际读取的配置文件路径；没有配置文件时为空。
	File string

	Stash Stash

	Encoding  string
	Pretty    bool
	Overwrite bool
	Images    bool

	Concurrency int
	ExcludeDirs []string

	CacheDir string

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) --config 指定路径：必须存在（否则 config_not_found）
// 2) 否则尝试 <cwd>/stash2nfo.toml（可选）
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认值。
func Load(cwd string, cli CLIArgs) (Effective, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var cfgPath string
	required := strings.TrimSpace(cli.ConfigPath) != ""
	if required {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return Effective{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.File = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (Effective, error) {
	st := Stash{
		Scheme:   strings.ToLower(strings.TrimSpace(fc.Stash.Scheme)),
		Host:     strings.TrimSpace(fc.Stash.Host),
		Port:     fc.Stash.Port,
		APIKey:   strings.TrimSpace(fc.Stash.APIKey),
		Username: fc.Stash.Username,
		Password: fc.Stash.Password,
		ProxyURL: strings.TrimSpace(fc.Stash.ProxyURL),
	}
	if st.Scheme == "" {
		st.Scheme = DefaultScheme
	}
	if st.Scheme != "http" && st.Scheme != "https" {
		return Effective{}, fmt.Errorf("stash.scheme 必须是 http/https：%q", st.Scheme)
	}
	if st.Host == "" {
		st.Host = DefaultHost
	}
	if st.Port == 0 {
		st.Port = DefaultPort
	}
	if st.Port < 1 || st.Port > 65535 {
		return Effective{}, fmt.Errorf("stash.port 超出范围：%d", st.Port)
	}
	if st.ProxyURL != "" {
		u, err := url.Parse(st.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Effective{}, fmt.Errorf("stash.proxy_url 无效：%q", st.ProxyURL)
		}
	}

	// encoding：CLI > config > 默认 utf-8
	encoding := DefaultEncoding
	if cli.EncodingSet {
		encoding = strings.TrimSpace(cli.Encoding)
	} else if e := strings.TrimSpace(fc.Output.Encoding); e != "" {
		encoding = e
	}
	if err := charset.Validate(encoding); err != nil {
		return Effective{}, err
	}

	concurrency := fc.Run.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	level := strings.ToLower(strings.TrimSpace(fc.Log.Level))
	if level == "" {
		level = DefaultLogLevel
	}
	if cli.Verbose {
		level = "debug"
	}
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return Effective{}, fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", level)
	}
	format := strings.ToLower(strings.TrimSpace(fc.Log.Format))
	if format == "" {
		format = DefaultLogFormat
	}
	if format != "console" && format != "json" {
		return Effective{}, fmt.Errorf("log.format 只能是 console/json，实际是 %q", format)
	}

	cacheDir := ""
	if d := strings.TrimSpace(fc.CacheDir); d != "" {
		cacheDir = absCleanFrom(cwdAbs, d)
	}

	return Effective{
		Stash:       st,
		Encoding:    encoding,
		Pretty:      pick(cli.PrettySet, cli.Pretty, fc.Output.Pretty, false),
		Overwrite:   pick(cli.OverwriteSet, cli.Overwrite, fc.Output.Overwrite, false),
		Images:      pick(cli.ImagesSet, cli.Images, fc.Output.Images, true),
		Concurrency: concurrency,
		ExcludeDirs: append([]string(nil), fc.Run.ExcludeDirs...),
		CacheDir:    cacheDir,
		LogLevel:    level,
		LogFormat:   format,
	}, nil
}

// pick 实现布尔项的 CLI > config > 默认。
func pick(cliSet, cliVal bool, file *bool, def bool) bool {
	if cliSet {
		return cliVal
	}
	if file != nil {
		return *file
	}
	return def
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件（未知字段视为错误）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
