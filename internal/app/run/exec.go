package run

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
	"github.com/John-Robertt/autorename/internal/infra/fsx"
	"github.com/John-Robertt/autorename/internal/infra/journal"
	"github.com/John-Robertt/autorename/internal/scan"
)

// 测试替换点。
var (
	renameFile = fsx.RenameNoOverwrite
	copyFile   = fsx.CopyFileNoOverwrite
	ensureDir  = fsx.EnsureDir
)

type outcome struct {
	status string
	code   string
	msg    string
}

// executor 只消费 FinalMapping，单线程执行；单条失败不影响其他条目。
type executor struct {
	action  string
	logger  *zap.Logger
	obs     Observer
	journal *journal.Store

	done int
}

// apply 返回与 m 等长、下标对应的执行结果。
//
// rename 时目标可能恰好是另一个尚未移走的源（a->b, b->c）：这类条目推迟到后续轮次，
// 直到没有进展为止；剩下的是环（a->b, b->a），按 target_conflict 失败。
func (ex *executor) apply(ctx context.Context, m domain.FinalMapping) []outcome {
	started := time.Now()
	out := make([]outcome, len(m))
	dirs := make(map[string]error)

	pending := make([]int, 0, len(m))
	for i, e := range m {
		if e.Src == e.Dst {
			out[i] = outcome{status: domain.FileStatusUnchanged}
			ex.itemDone(len(m), e, out[i], 0)
			continue
		}
		pending = append(pending, i)
	}

	// occupied: 仍在原位、尚未处理的源（只对 rename 有意义）。
	occupied := make(map[string]struct{}, len(pending))
	if ex.action == domain.ActionRename {
		for _, i := range pending {
			occupied[m[i].Src] = struct{}{}
		}
	}

	for len(pending) > 0 {
		var deferred []int
		for _, i := range pending {
			e := m[i]
			if err := ctx.Err(); err != nil {
				out[i] = outcome{status: domain.FileStatusFailed, code: domain.ErrCodeAborted, msg: err.Error()}
				ex.itemDone(len(m), e, out[i], 0)
				delete(occupied, e.Src)
				continue
			}
			if _, busy := occupied[e.Dst]; busy {
				deferred = append(deferred, i)
				continue
			}

			itemStarted := time.Now()
			out[i] = ex.applyOne(e, dirs)
			delete(occupied, e.Src)
			ex.itemDone(len(m), e, out[i], time.Since(itemStarted))
		}

		if len(deferred) == len(pending) {
			for _, i := range deferred {
				out[i] = outcome{
					status: domain.FileStatusFailed,
					code:   domain.ErrCodeTargetConflict,
					msg:    "目标是同批次另一个待改名的源文件，且构成循环",
				}
				ex.logger.Error("rename cycle", zap.String("file", m[i].Src), zap.String("target", m[i].Dst))
				ex.itemDone(len(m), m[i], out[i], 0)
			}
			break
		}
		pending = deferred
	}

	if ex.obs != nil {
		ex.obs.OnPhaseDone("exec", map[string]any{"items": len(m)}, time.Since(started))
	}
	return out
}

func (ex *executor) applyOne(e domain.FinalEntry, dirs map[string]error) outcome {
	logger := ex.logger.With(zap.String("file", e.Src), zap.String("target", e.Dst))

	dir := filepath.Dir(e.Dst)
	err, ok := dirs[dir]
	if !ok {
		err = ensureDir(dir)
		dirs[dir] = err
	}
	if err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsTargetConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		logger.Error("preparing target directory", zap.Error(err))
		return outcome{status: domain.FileStatusFailed, code: code, msg: err.Error()}
	}

	if ex.action == domain.ActionCopy {
		if err := copyFile(e.Src, e.Dst); err != nil {
			code := domain.ErrCodeCopyFailed
			if fsx.IsTargetConflict(err) {
				code = domain.ErrCodeTargetConflict
			}
			logger.Error("copy failed", zap.Error(err))
			return outcome{status: domain.FileStatusFailed, code: code, msg: err.Error()}
		}
		logger.Info("copied")
		return outcome{status: domain.FileStatusCopied}
	}

	if err := renameFile(e.Src, e.Dst); err != nil {
		code := domain.ErrCodeIOFailed
		switch {
		case fsx.IsTargetConflict(err):
			code = domain.ErrCodeTargetConflict
		case fsx.IsCrossDevice(err):
			code = domain.ErrCodeMoveFailed
		}
		logger.Error("rename failed", zap.Error(err))
		return outcome{status: domain.FileStatusFailed, code: code, msg: err.Error()}
	}
	logger.Info("renamed")
	return outcome{status: domain.FileStatusRenamed}
}

func (ex *executor) itemDone(total int, e domain.FinalEntry, o outcome, dur time.Duration) {
	ex.done++
	if ex.obs == nil {
		return
	}
	ex.obs.OnItemDone(ex.done, total, domain.FileResult{
		Src:       e.Src,
		Dst:       e.Dst,
		Status:    o.status,
		Duplicate: e.Duplicate,
		ErrorCode: o.code,
		ErrorMsg:  o.msg,
	}, dur)
}

// record 把执行结果追加到 journal；写失败只记日志。
func (ex *executor) record(m domain.FinalMapping, items []domain.FileResult) {
	at := time.Now()
	for i, e := range m {
		it := items[i]
		err := ex.journal.Record(journal.Entry{
			Src:       e.Src,
			Dst:       e.Dst,
			Status:    it.Status,
			Sources:   it.Sources,
			Duplicate: e.Duplicate,
			ErrorCode: it.ErrorCode,
			ErrorMsg:  it.ErrorMsg,
			At:        at,
		})
		if err != nil {
			ex.logger.Warn("writing journal entry", zap.String("file", e.Src), zap.Error(err))
			if errors.Is(err, journal.ErrNoRun) {
				return
			}
		}
	}
}

// openJournal 打不开时只告警，本次运行照常继续。
func openJournal(target string, r journal.Run, logger *zap.Logger) *journal.Store {
	dir := filepath.Join(target, scan.StateDirName)
	st, err := journal.Open(dir)
	if err != nil {
		logger.Warn("opening journal; continuing without it", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	if _, err := st.BeginRun(r); err != nil {
		logger.Warn("starting journal run; continuing without it", zap.Error(err))
		_ = st.Close()
		return nil
	}
	return st
}
