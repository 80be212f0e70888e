package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/stash2nfo/internal/app/run"
	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// 约束：
// - 所有过程信息写到 stderr（或 fallback 到 stdout 终端），不污染 stdout 的 JSON 报告
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 长时间无条目完成时定期输出一行 keepalive（含正在处理的条目）
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	active  map[string]struct{}

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		active:             map[string]struct{}{},
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(root string, eff config.Effective) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] stash2nfo run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", root)
	if eff.File != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.File)
	}
	fmt.Fprintf(p.w, "  encoding: %s\n", eff.Encoding)
	fmt.Fprintf(p.w, "  pretty: %s\n", onOff(eff.Pretty))
	fmt.Fprintf(p.w, "  overwrite: %s\n", onOff(eff.Overwrite))
	fmt.Fprintf(p.w, "  images: %s\n", onOff(eff.Images))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除隐藏目录\n", formatStringListJSON(eff.ExcludeDirs))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "plan":
		fmt.Fprintf(p.w, "规划: convert=%d skip=%d conflict=%d (%s)\n",
			intField(fields, "convert"),
			intField(fields, "skip"),
			intField(fields, "conflict"),
			formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		// 兜底：未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemStart(input string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[input] = struct{}{}
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, res.Input)
	p.done = idx
	p.total = total
	if res.Status == domain.StatusFailed {
		p.fail++
	} else {
		p.ok++
	}

	fmt.Fprintln(p.w, formatItemLine(idx, total, res, dur))
	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// Stop 停止 keepalive（可重复调用）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.keepaliveLineLocked(time.Since(p.startedAt)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) keepaliveLineLocked(elapsed time.Duration) string {
	names := make([]string, 0, len(p.active))
	for k := range p.active {
		names = append(names, k)
	}
	sort.Strings(names)

	line := fmt.Sprintf("进度: done=%d/%d ok=%d fail=%d active=%d elapsed=%s",
		p.done, p.total, p.ok, p.fail, len(names), formatElapsed(elapsed),
	)
	if len(names) > 0 {
		const show = 3
		more := ""
		if len(names) > show {
			more = fmt.Sprintf(" +%d", len(names)-show)
			names = names[:show]
		}
		line += " [" + truncateWidth(strings.Join(names, ", "), 100) + more + "]"
	}
	return line
}

func formatItemLine(idx, total int, res domain.ItemResult, dur time.Duration) string {
	switch res.Status {
	case domain.StatusFailed:
		return fmt.Sprintf("[%d/%d] %s FAIL %s: %s (%s)",
			idx, total, res.Input, res.ErrorCode, truncateWidth(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		return fmt.Sprintf("[%d/%d] %s SKIP (%s)", idx, total, res.Input, formatShortDuration(dur))
	default:
		images := ""
		if n := len(res.Images); n > 0 || res.ImageSkipped > 0 {
			images = fmt.Sprintf(" images=%d", n)
			if res.ImageSkipped > 0 {
				images += fmt.Sprintf(" image_skipped=%d", res.ImageSkipped)
			}
		}
		return fmt.Sprintf("[%d/%d] %s OK kind=%s%s (%s)",
			idx, total, res.Input, res.Kind, images, formatShortDuration(dur),
		)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
