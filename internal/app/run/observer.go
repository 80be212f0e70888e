package run

import (
	"time"

	"github.com/John-Robertt/stash2nfo/internal/config"
	"github.com/John-Robertt/stash2nfo/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 报告）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(root string, eff config.Effective)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemStart 在 worker 开始转换某个记录文件时调用。
	OnItemStart(input string)
	// OnItemDone 在某个记录文件转换完成时调用（只针对需要转换的条目）。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
