package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/app/dedup"
	"github.com/John-Robertt/autorename/internal/app/planner"
	"github.com/John-Robertt/autorename/internal/config"
	"github.com/John-Robertt/autorename/internal/domain"
	"github.com/John-Robertt/autorename/internal/infra/digest"
	"github.com/John-Robertt/autorename/internal/infra/journal"
	"github.com/John-Robertt/autorename/internal/scan"
	"github.com/John-Robertt/autorename/internal/timesrc"
)

type Options struct {
	// Action 是 rename / copy / dryrun 之一。
	Action string

	Logger *zap.Logger

	// Collector 为 nil 时按 eff 构造 timesrc.Extractor。
	Collector planner.Collector
	// Hasher 为 nil 时使用 BLAKE3 文件摘要。
	Hasher dedup.Hasher

	// Confirm 在真正执行（rename/copy）之前调用，参数是计划中的条目；
	// 返回 false 表示用户取消，报告标记 cancelled 且不做任何改动。
	Confirm func(planned []domain.FileResult) bool
}

// Execute 执行一次 run，并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为条目级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, opts Options) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, opts, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, opts Options, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if obs != nil {
		obs.OnStart(eff, opts.Action)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Source:    eff.Source,
		Target:    eff.Target,
		Action:    opts.Action,
		DryRun:    opts.Action == domain.ActionDryRun,
		StartedAt: started,
		Items:     make([]domain.FileResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	switch opts.Action {
	case domain.ActionRename, domain.ActionCopy, domain.ActionDryRun:
	default:
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("未知动作：%q", opts.Action)))
		return finish()
	}

	// 扫描
	scanStarted := time.Now()
	files, err := scan.ScanMedia(eff.Source, scan.Options{
		Recursive:   eff.Recursive,
		ExcludeDirs: excludeDirs(eff),
		Extensions:  eff.Extensions,
	})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish()
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}
	logger.Debug("scan done", zap.String("source", eff.Source), zap.Int("files", len(files)))

	// 提取：按文件并发，结果按下标存放，保证顺序与扫描顺序一致。
	collector := opts.Collector
	if collector == nil {
		collector = timesrc.New(timesrc.Options{
			Location:     eff.Location,
			FileCreation: eff.FileCreationTime,
			XMPSidecar:   eff.XMPSidecar,
			Logger:       logger,
		})
	}
	popts := planner.Options{AppendOriginalName: eff.AppendOriginalName}
	if !samePath(eff.Source, eff.Target) {
		// 目标与源不同：全部平铺到目标目录；相同则原地改名。
		popts.TargetDir = eff.Target
	}

	extractStarted := time.Now()
	plans := extractAll(ctx, files, collector, popts, eff.Concurrency, obs)

	byAbs := make(map[string]int, len(plans))
	var unresolved, failed int
	for i, p := range plans {
		switch p.Outcome {
		case planner.OutcomeProposed:
			byAbs[p.Proposal.Src] = i
		case planner.OutcomeUnresolved:
			unresolved++
			logger.Warn("no timestamp found", zap.String("file", p.File.AbsPath))
			rr.Items = append(rr.Items, planItem(p, domain.FileStatusUnresolved))
		default:
			failed++
			logger.Error("proposal failed", zap.String("file", p.File.AbsPath), zap.Error(p.Err))
			rr.Items = append(rr.Items, planItem(p, domain.FileStatusFailed))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("extract", map[string]any{
			"proposed":   len(byAbs),
			"unresolved": unresolved,
			"failed":     failed,
			"workers":    clampWorkers(eff.Concurrency, len(files)),
		}, time.Since(extractStarted))
	}

	// 消解冲突：必须在所有提议都就绪之后、单线程进行。
	resolveStarted := time.Now()
	hasher := opts.Hasher
	if hasher == nil {
		hasher = dedup.HasherFunc(digest.File)
	}
	mapping, err := dedup.Resolve(planner.Proposals(plans), hasher, logger)
	if err != nil {
		logger.Error("collision resolution failed; nothing was changed", zap.Error(err))
		code := domain.ErrCodeIOFailed
		var rc *dedup.ResidualCollisionError
		if errors.As(err, &rc) {
			code = domain.ErrCodeResidualCollision
		}
		rr.Items = append(rr.Items, syntheticFailed(code, err.Error()))
		for _, i := range byAbs {
			it := planItem(plans[i], domain.FileStatusFailed)
			it.ErrorCode = domain.ErrCodeAborted
			it.ErrorMsg = "批次因目标名冲突中止，未执行任何操作"
			rr.Items = append(rr.Items, it)
		}
		return finish()
	}

	planned := make([]domain.FileResult, 0, len(mapping))
	var dups, numbered int
	for _, e := range mapping {
		it := planItem(plans[byAbs[e.Src]], domain.FileStatusPlanned)
		it.Dst = relTo(eff.Target, e.Dst)
		it.Duplicate = e.Duplicate
		planned = append(planned, it)
		if e.Duplicate {
			dups++
		}
		if e.Suffix > 0 {
			numbered++
		}
	}
	if obs != nil {
		obs.OnPhaseDone("resolve", map[string]any{
			"entries":    len(mapping),
			"duplicates": dups,
			"numbered":   numbered,
		}, time.Since(resolveStarted))
	}

	if opts.Action == domain.ActionDryRun {
		for i := range planned {
			if mapping[i].Src == mapping[i].Dst {
				planned[i].Status = domain.FileStatusUnchanged
			}
			if obs != nil {
				obs.OnItemDone(i+1, len(planned), planned[i], 0)
			}
		}
		rr.Items = append(rr.Items, planned...)
		return finish()
	}

	if opts.Confirm != nil && !opts.Confirm(planned) {
		logger.Info("cancelled by user; nothing was changed")
		rr.Cancelled = true
		rr.Items = append(rr.Items, planned...)
		return finish()
	}

	ex := executor{
		action: opts.Action,
		logger: logger,
		obs:    obs,
	}
	if eff.Journal {
		ex.journal = openJournal(eff.Target, journal.Run{
			UUID:      rr.RunID,
			Action:    opts.Action,
			Source:    eff.Source,
			Target:    eff.Target,
			StartedAt: started,
		}, logger)
	}
	outcomes := ex.apply(ctx, mapping)
	for i := range planned {
		o := outcomes[i]
		planned[i].Status = o.status
		planned[i].ErrorCode = o.code
		planned[i].ErrorMsg = o.msg
	}
	rr.Items = append(rr.Items, planned...)

	if ex.journal != nil {
		ex.record(mapping, planned)
		if err := ex.journal.FinishRun(time.Now(), false); err != nil {
			logger.Warn("finishing journal run", zap.Error(err))
		}
		_ = ex.journal.Close()
	}
	return finish()
}

func extractAll(ctx context.Context, files []domain.MediaFile, c planner.Collector, popts planner.Options, concurrency int, obs Observer) []planner.Plan {
	plans := make([]planner.Plan, len(files))
	if len(files) == 0 {
		return plans
	}
	workers := clampWorkers(concurrency, len(files))

	started := time.Now()
	var done atomic.Int64
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					plans[i] = planner.Plan{
						File:      files[i],
						Outcome:   planner.OutcomeFailed,
						ErrorCode: domain.ErrCodeAborted,
						Err:       err,
					}
				} else {
					plans[i] = planner.ProposeFile(c, files[i], popts)
				}
				n := done.Add(1)
				if obs != nil {
					obs.OnProgress("extract", int(n), len(files), time.Since(started))
				}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return plans
}

func clampWorkers(n, files int) int {
	if n < 1 {
		n = 1
	}
	if n > config.MaxConcurrency {
		n = config.MaxConcurrency
	}
	if files > 0 && n > files {
		n = files
	}
	return n
}

// excludeDirs 在配置的排除项之外，把位于源目录内部的目标目录也排除掉（避免递归扫描时重复处理）。
func excludeDirs(eff config.EffectiveConfig) []string {
	out := append([]string(nil), eff.ExcludeDirs...)
	if !samePath(eff.Source, eff.Target) && isUnder(eff.Target, eff.Source) {
		out = append(out, eff.Target)
	}
	return out
}

func planItem(p planner.Plan, status string) domain.FileResult {
	it := domain.FileResult{
		Src:    p.File.RelPath,
		Status: status,
	}
	if p.Outcome == planner.OutcomeProposed {
		rt := p.Proposal.Resolved
		it.Timestamp = formatResolved(rt)
		it.Precision = rt.Precision.String()
		it.Sources = rt.SourceNames()
		return it
	}
	it.ErrorCode = p.ErrorCode
	if p.Err != nil {
		it.ErrorMsg = p.Err.Error()
	}
	return it
}

func formatResolved(rt domain.ResolvedTime) string {
	if rt.Precision == domain.DateOnly {
		return rt.Timestamp.Format("2006-01-02")
	}
	return rt.Timestamp.Format(time.RFC3339)
}

func syntheticFailed(code, msg string) domain.FileResult {
	return domain.FileResult{
		Src:       "",
		Dst:       "",
		Status:    domain.FileStatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// relTo 返回 p 相对 base 的路径；不在 base 之下时返回绝对路径。
func relTo(base, p string) string {
	if !isUnder(p, base) {
		return p
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return p
	}
	return rel
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func isUnder(path, base string) bool {
	path = filepath.Clean(path)
	base = filepath.Clean(base)
	if path == base {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(base, string(filepath.Separator))+string(filepath.Separator))
}
