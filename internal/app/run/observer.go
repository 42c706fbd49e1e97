package run

import (
	"time"

	"github.com/John-Robertt/autorename/internal/config"
	"github.com/John-Robertt/autorename/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：提取阶段的事件来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig, action string)
	// OnPhaseDone 在阶段结束时调用（scan/extract/resolve/exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnProgress 在长阶段里每完成一个文件调用一次；实现方自行节流。
	OnProgress(phase string, done, total int, elapsed time.Duration)
	// OnItemDone 在执行阶段每个文件得出最终状态时调用。
	OnItemDone(idx, total int, res domain.FileResult, dur time.Duration)
}
