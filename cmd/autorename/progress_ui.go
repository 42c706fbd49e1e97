package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/autorename/internal/app/run"
	"github.com/John-Robertt/autorename/internal/config"
	"github.com/John-Robertt/autorename/internal/domain"
	"github.com/John-Robertt/autorename/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 提取阶段按间隔节流，长时间没有新输出时由 ticker 补一行 keepalive
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	phase string
	total int
	done  int

	ok   int
	fail int

	progressInterval   time.Duration
	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		progressInterval:   time.Second,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, action string) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	modeHint := ""
	if action == domain.ActionDryRun {
		modeHint = " (不改动任何文件)"
	}

	fmt.Fprintf(p.w, "[%s] autorename %s\n", now.Format("15:04:05"), action)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  source: %s\n", eff.Source)
	fmt.Fprintf(p.w, "  target: %s%s\n", eff.Target, sameDirNote(eff))
	fmt.Fprintf(p.w, "  mode: %s%s\n", action, modeHint)
	fmt.Fprintf(p.w, "  recursive: %s\n", onOff(eff.Recursive))
	fmt.Fprintf(p.w, "  append_original_name: %s\n", onOff(eff.AppendOriginalName))
	fmt.Fprintf(p.w, "  sources: %s\n", sourceChain(eff))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	if eff.Location != nil {
		fmt.Fprintf(p.w, "  timezone: %s\n", eff.Location)
	}
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 %s/\n", formatStringListJSON(eff.ExcludeDirs), scan.StateDirName)
	if len(eff.Extensions) > 0 {
		fmt.Fprintf(p.w, "  extensions: %s\n", formatStringListJSON(eff.Extensions))
	}
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", truncate(eff.ConfigPath, 160))
	}
	if eff.LogFile != "" {
		fmt.Fprintf(p.w, "  log_file: %s\n", truncate(eff.LogFile, 160))
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		p.total = intField(fields, "files")
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", p.total, formatShortDuration(dur))
	case "extract":
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "提取: proposed=%d unresolved=%d failed=%d workers=%d (%s)\n",
			intField(fields, "proposed"),
			intField(fields, "unresolved"),
			intField(fields, "failed"),
			intField(fields, "workers"),
			formatShortDuration(dur),
		)
	case "resolve":
		fmt.Fprintf(p.w, "消解: entries=%d duplicates=%d numbered=%d (%s)\n\n",
			intField(fields, "entries"),
			intField(fields, "duplicates"),
			intField(fields, "numbered"),
			formatShortDuration(dur),
		)
	case "exec":
		fmt.Fprintf(p.w, "\n执行: items=%d ok=%d fail=%d (%s)\n",
			intField(fields, "items"), p.ok, p.fail, formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnProgress(phase string, done, total int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phase = phase
	p.done = done
	p.total = total
	if !p.tickerStarted && done < total {
		p.startTickerLocked()
	}

	// 每个文件都打印会刷屏：只在间隔到达或最后一个时输出。
	if done < total && time.Since(p.lastPrinted) < p.progressInterval {
		return
	}
	p.printProgressLocked(elapsed)
}

func (p *progressUI) OnItemDone(idx, total int, res domain.FileResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.FileStatusRenamed, domain.FileStatusCopied:
		p.ok++
		status = "OK"
	case domain.FileStatusUnchanged:
		p.ok++
		status = "SAME"
	case domain.FileStatusPlanned:
		status = "PLAN"
	case domain.FileStatusFailed:
		p.fail++
		status = "FAIL"
	}

	dup := ""
	if res.Duplicate {
		dup = " duplicate"
	}

	if res.Status == domain.FileStatusFailed {
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s\n",
			idx, total, status, filepath.Base(res.Src), res.ErrorCode, truncate(res.ErrorMsg, 160),
		)
	} else if dur > 0 {
		fmt.Fprintf(p.w, "[%d/%d] %s %s -> %s%s (%s)\n",
			idx, total, status, filepath.Base(res.Src), filepath.Base(res.Dst), dup, formatShortDuration(dur),
		)
	} else {
		fmt.Fprintf(p.w, "[%d/%d] %s %s -> %s%s\n",
			idx, total, status, filepath.Base(res.Src), filepath.Base(res.Dst), dup,
		)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) printProgressLocked(elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: %s done=%d/%d elapsed=%s\n",
		p.phase, p.done, p.total, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					p.printProgressLocked(time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

func sameDirNote(eff config.EffectiveConfig) string {
	if filepath.Clean(eff.Source) == filepath.Clean(eff.Target) {
		return " (原地)"
	}
	return ""
}

// sourceChain 列出会尝试的时间来源（按优先顺序）。
func sourceChain(eff config.EffectiveConfig) string {
	parts := []string{"exif|video"}
	if eff.XMPSidecar {
		parts = append(parts, "xmp")
	}
	parts = append(parts, "filename")
	if eff.FileCreationTime {
		parts = append(parts, "creation_time")
	}
	return strings.Join(parts, " + ")
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

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
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
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
