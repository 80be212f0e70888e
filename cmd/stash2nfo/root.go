package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/infra/fsx"
	"github.com/John-Robertt/stash2nfo/internal/logging"
	"github.com/John-Robertt/stash2nfo/internal/stash"
)

// app 持有全部子命令共享的状态：持久化 flag、IO 与可替换的外部依赖。
type app struct {
	configPath string
	verbose    bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	isTerminal func(v any) bool
	newStash   func(ctx context.Context, cfg config.Stash, log *zap.Logger) (stash.Client, error)
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		isTerminal: isTerminal,
		newStash:   dialStash,
	}
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stash2nfo",
		Short:         "把 Stash 导出的 JSON/YAML 记录转换为 Kodi/Jellyfin/Emby NFO",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "配置文件路径（默认 ./"+config.FileName+"）")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "输出 debug 级别日志")

	rootCmd.AddCommand(newConvertCommand(a))
	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newFetchCommand(a))
	rootCmd.AddCommand(newSearchCommand(a))
	return rootCmd
}

// outputFlags 是 convert/run/fetch 共用的输出相关 flag。
type outputFlags struct {
	encoding  string
	pretty    bool
	overwrite bool
	images    bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.encoding, "encoding", config.DefaultEncoding, "输出编码（WHATWG 编码名）")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "缩进输出 XML")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "覆盖已存在的 NFO")
	cmd.Flags().BoolVar(&f.images, "images", true, "抽取内嵌的 base64 图片")
}

// cliArgs 把显式指定的 flag 转为 config.CLIArgs（未指定的 flag 不参与覆盖）。
func (f *outputFlags) cliArgs(a *app, cmd *cobra.Command) config.CLIArgs {
	flags := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:   a.configPath,
		Verbose:      a.verbose,
		Encoding:     f.encoding,
		EncodingSet:  flags.Changed("encoding"),
		Pretty:       f.pretty,
		PrettySet:    flags.Changed("pretty"),
		Overwrite:    f.overwrite,
		OverwriteSet: flags.Changed("overwrite"),
		Images:       f.images,
		ImagesSet:    flags.Changed("images"),
	}
}

// load 读取最终配置并构造 logger（日志只写 stderr）。
func (a *app) load(cli config.CLIArgs) (config.Effective, *zap.Logger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Effective{}, nil, fmt.Errorf("读取当前目录失败：%w", err)
	}
	eff, err := config.Load(cwd, cli)
	if err != nil {
		return config.Effective{}, nil, err
	}
	log, err := logging.New(logging.Options{
		Level:  eff.LogLevel,
		Format: eff.LogFormat,
		Output: zapcore.AddSync(a.stderr),
	})
	if err != nil {
		return config.Effective{}, nil, err
	}
	if eff.File != "" {
		log.Debug("loaded config", zap.String("file", eff.File))
	}
	return eff, log, nil
}

// confirmOverwrite 决定是否写入已存在的 path。
//
// 规则：
// - overwrite=true 或目标不存在：直接写
// - 目标存在且 stdin 是终端：询问，只有 y/yes 继续
// - 目标存在且 stdin 非交互：返回 target_exists 错误
func (a *app) confirmOverwrite(path string, overwrite bool) (proceed, replace bool, err error) {
	if overwrite {
		return true, true, nil
	}
	exists, err := fsx.CheckTarget(path)
	if err != nil {
		return false, false, err
	}
	if !exists {
		return true, false, nil
	}
	if !a.isTerminal(a.stdin) {
		return false, false, fmt.Errorf("%s：输出文件 %q 已存在（使用 --overwrite 覆盖）", domain.ErrCodeTargetExists, path)
	}

	fmt.Fprintf(a.stdout, "Output file '%s' already exists. Overwrite? (y/N): ", path)
	answer, _ := bufio.NewReader(a.stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, true, nil
	default:
		fmt.Fprintln(a.stdout, "Operation cancelled.")
		return false, false, nil
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func dialStash(ctx context.Context, cfg config.Stash, log *zap.Logger) (stash.Client, error) {
	return stash.New(ctx, stash.Config{
		Scheme:   cfg.Scheme,
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		Username: cfg.Username,
		Password: cfg.Password,
		ProxyURL: cfg.ProxyURL,
	}, log)
}
