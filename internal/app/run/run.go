// Package run 执行一次批量转换：扫描记录文件 → 规划输出 → 并发转换，并产出 RunReport。
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/stash2nfo/internal/app/convert"
	"github.com/John-Robertt/stash2nfo/internal/app/planner"
	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
	"github.com/John-Robertt/stash2nfo/internal/scan"
)

const maxWorkers = 32

// Execute 对 root 下的全部记录文件执行批量转换，并返回 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, root string, eff config.Effective, log *zap.Logger) domain.RunReport {
	return ExecuteWithObserver(ctx, root, eff, log, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, root string, eff config.Effective, log *zap.Logger, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	if log == nil {
		log = zap.NewNop()
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      root,
		Overwrite: eff.Overwrite,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	log = log.With(zap.String("run_id", rr.RunID))
	log.Info("run started", zap.String("root", root), zap.Bool("overwrite", eff.Overwrite))

	if obs != nil {
		obs.OnStart(root, eff)
	}

	scanStarted := time.Now()
	files, err := scan.ScanRecords(root, eff.ExcludeDirs)
	if err != nil {
		log.Error("scan failed", zap.Error(err))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish(rr, log)
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	planStarted := time.Now()
	plans, err := planner.PlanAll(files, eff.Overwrite)
	if err != nil {
		log.Error("plan failed", zap.Error(err))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("规划失败：%v", err)))
		return finish(rr, log)
	}

	todo := make([]planner.ItemPlan, 0, len(plans))
	var skipped, conflicts int
	for _, p := range plans {
		switch p.Action {
		case planner.ActionConvert:
			todo = append(todo, p)
		case planner.ActionSkip:
			skipped++
			rr.Items = append(rr.Items, plannedItem(p, domain.StatusSkipped))
		default:
			conflicts++
			log.Warn("output conflict", zap.String("input", p.Input.RelPath), zap.String("reason", p.ErrorMsg))
			rr.Items = append(rr.Items, plannedItem(p, domain.StatusFailed))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"convert":  len(todo),
			"skip":     skipped,
			"conflict": conflicts,
		}, time.Since(planStarted))
	}

	// 执行阶段：按记录文件并发（worker pool）；同目录写入由 convert 内的目录锁串行化。
	workers := clampWorkers(eff.Concurrency)
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_items": len(todo),
		}, 0)
	}

	opts := convert.FileOptions{
		Options: convert.Options{
			Encoding: eff.Encoding,
			Pretty:   eff.Pretty,
		},
		Overwrite: eff.Overwrite,
		Images:    eff.Images,
	}

	type execResult struct {
		res domain.ItemResult
		dur time.Duration
	}

	jobs := make(chan planner.ItemPlan)
	results := make(chan execResult, len(todo))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if obs != nil {
					obs.OnItemStart(p.Input.RelPath)
				}
				oneStarted := time.Now()
				r := execOne(ctx, p, opts, log)
				results <- execResult{res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, p := range todo {
			jobs <- p
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(todo), it.res, it.dur)
		}
	}

	return finish(rr, log)
}

func execOne(ctx context.Context, p planner.ItemPlan, opts convert.FileOptions, log *zap.Logger) domain.ItemResult {
	item := domain.ItemResult{
		Input:  p.Input.RelPath,
		Output: p.OutputRel,
		Status: domain.StatusProcessed, // 失败时覆盖
	}
	log = log.With(zap.String("input", p.Input.RelPath))

	if err := ctx.Err(); err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeIOFailed
		item.ErrorMsg = fmt.Sprintf("已取消：%v", err)
		return item
	}

	res, err := convert.File(ctx, p.Input.AbsPath, p.OutputAbs, opts, log)
	if res.Kind != domain.KindUnknown {
		item.Kind = string(res.Kind)
	}
	if err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = convert.ErrorCode(err)
		item.ErrorMsg = err.Error()
		log.Warn("convert failed", zap.String("error_code", item.ErrorCode), zap.Error(err))
		return item
	}

	item.Images = res.Images.Filenames()
	item.ImageSkipped = len(res.Images.Skipped)
	log.Debug("converted",
		zap.String("kind", item.Kind),
		zap.String("output", p.OutputRel),
		zap.Int("bytes", res.Bytes),
		zap.Int("images", len(item.Images)),
	)
	return item
}

func plannedItem(p planner.ItemPlan, status string) domain.ItemResult {
	return domain.ItemResult{
		Input:     p.Input.RelPath,
		Output:    p.OutputRel,
		Status:    status,
		ErrorCode: p.ErrorCode,
		ErrorMsg:  p.ErrorMsg,
	}
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

func finish(rr domain.RunReport, log *zap.Logger) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	log.Info("run finished",
		zap.Int("processed", rr.Summary.Processed),
		zap.Int("skipped", rr.Summary.Skipped),
		zap.Int("failed", rr.Summary.Failed),
		zap.Duration("elapsed", rr.FinishedAt.Sub(rr.StartedAt)),
	)
	return rr
}

func clampWorkers(n int) int {
	switch {
	case n < 1:
		return 1
	case n > maxWorkers:
		return maxWorkers
	default:
		return n
	}
}
