package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/stash2nfo/internal/app/run"
	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		outF        outputFlags
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "批量转换目录树下的全部记录文件（NFO 写在每个输入旁边）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			rootAbs, err := filepath.Abs(root)
			if err != nil {
				return err
			}

			cli := outF.cliArgs(a, cmd)
			cli.Concurrency = concurrency
			cli.ConcurrencySet = cmd.Flags().Changed("concurrency")

			eff, log, err := a.load(cli)
			if err != nil {
				// 配置错误同样以 RunReport 输出，保证 stdout 的 JSON 契约不变。
				a.emitReport(reportForConfigError(rootAbs, cli, err))
				return &exitError{code: 1}
			}
			defer func() { _ = log.Sync() }()

			progressW, interactive := a.pickProgressWriter()
			var obs run.Observer
			if interactive {
				ui := newProgressUI(progressW)
				defer ui.Stop()
				obs = ui
			}

			rr := run.ExecuteWithObserver(cmd.Context(), rootAbs, eff, log, obs)
			a.emitReport(rr)
			if rr.Summary.Failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	outF.register(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", config.DefaultConcurrency, "并发 worker 数（1-32）")
	return cmd
}

// emitReport：stdout 是终端时输出摘要；否则 stdout 只输出一个 RunReport JSON（摘要走 stderr）。
func (a *app) emitReport(rr domain.RunReport) {
	if a.isTerminal(a.stdout) {
		writeSummary(a.stdout, rr)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Input
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(a.stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(a.stdout)
	_ = enc.Encode(rr)
	writeSummary(a.stderr, rr)
}

func writeSummary(w io.Writer, rr domain.RunReport) {
	fmt.Fprintf(w, "完成：processed=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
}

func (a *app) pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if a.isTerminal(a.stderr) {
		return a.stderr, true
	}
	if a.isTerminal(a.stdout) {
		return a.stdout, true
	}
	return nil, false
}

func reportForConfigError(root string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Path:       root,
		Overwrite:  cli.OverwriteSet && cli.Overwrite,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}
