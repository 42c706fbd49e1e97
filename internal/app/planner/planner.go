package planner

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/autorename/internal/app"
	"github.com/John-Robertt/autorename/internal/domain"
)

// Format 是两种固定命名格式（Go time layout）。
type Format struct {
	DateOnly string
	DateTime string
}

var DefaultFormat = Format{
	DateOnly: "2006-01-02",
	DateTime: "2006-01-02_15-04-05",
}

// Collector 是“给一个文件，返回全部候选时间”的能力（timesrc.Extractor 实现它）。
type Collector interface {
	Collect(path string, kind domain.MediaKind) []domain.TimeCandidate
}

type Options struct {
	// TargetDir 为空时目标放在源文件所在目录。
	TargetDir string
	// AppendOriginalName 在时间之后追加 "-<原文件名主干>"。
	AppendOriginalName bool
	// Format 为零值时使用 DefaultFormat。
	Format Format
}

type Outcome int

const (
	OutcomeProposed Outcome = iota
	OutcomeUnresolved
	OutcomeFailed
)

// Plan 是单个文件的提议结果；只有 OutcomeProposed 时 Proposal 有效。
type Plan struct {
	File     domain.MediaFile
	Outcome  Outcome
	Proposal domain.Proposal

	ErrorCode string
	Err       error
}

// Propose 逐个文件生成提议；输出顺序与输入（扫描顺序）一致。
func Propose(c Collector, files []domain.MediaFile, opts Options) []Plan {
	out := make([]Plan, 0, len(files))
	for _, f := range files {
		out = append(out, ProposeFile(c, f, opts))
	}
	return out
}

// ProposeFile 只读文件，可在多个 goroutine 中并发调用（前提是 Collector 并发安全）。
func ProposeFile(c Collector, f domain.MediaFile, opts Options) Plan {
	p := Plan{File: f}

	cands := c.Collect(f.AbsPath, f.Kind)
	if len(cands) == 0 {
		p.Outcome = OutcomeUnresolved
		p.ErrorCode = domain.ErrCodeUnresolvedTime
		p.Err = errors.New("没有任何可用的时间来源")
		return p
	}

	rt, err := app.SelectOldest(cands)
	if err != nil {
		p.Outcome = OutcomeFailed
		p.ErrorCode = domain.ErrCodeEmptyCandidates
		p.Err = err
		return p
	}

	dir := opts.TargetDir
	if dir == "" {
		dir = filepath.Dir(f.AbsPath)
	}
	p.Outcome = OutcomeProposed
	p.Proposal = domain.Proposal{
		Src:      f.AbsPath,
		Dst:      filepath.Join(dir, TargetName(rt, f, opts)),
		Resolved: rt,
	}
	return p
}

// TargetName 生成目标文件名（不含目录）：<时间>[-<主干>]<小写扩展名>。
func TargetName(rt domain.ResolvedTime, f domain.MediaFile, opts Options) string {
	fm := opts.Format
	if fm.DateOnly == "" {
		fm.DateOnly = DefaultFormat.DateOnly
	}
	if fm.DateTime == "" {
		fm.DateTime = DefaultFormat.DateTime
	}

	layout := fm.DateTime
	if rt.Precision == domain.DateOnly {
		layout = fm.DateOnly
	}

	var b strings.Builder
	b.WriteString(rt.Timestamp.Format(layout))
	if opts.AppendOriginalName && f.Base != "" {
		b.WriteByte('-')
		b.WriteString(f.Base)
	}
	b.WriteString(strings.ToLower(f.Ext))
	return b.String()
}

// Proposals 取出所有成功提议（顺序不变），供 dedup 消费。
func Proposals(plans []Plan) []domain.Proposal {
	out := make([]domain.Proposal, 0, len(plans))
	for _, p := range plans {
		if p.Outcome == OutcomeProposed {
			out = append(out, p.Proposal)
		}
	}
	return out
}
