package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ActionRename = "rename"
	ActionCopy   = "copy"
	ActionDryRun = "dryrun"
)

const (
	FileStatusPlanned    = "planned"
	FileStatusRenamed    = "renamed"
	FileStatusCopied     = "copied"
	FileStatusUnchanged  = "unchanged"
	FileStatusUnresolved = "unresolved"
	FileStatusFailed     = "failed"
)

const (
	ErrCodeUnresolvedTime    = "unresolved_time"
	ErrCodeEmptyCandidates   = "empty_candidates"
	ErrCodeResidualCollision = "residual_collision"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeMoveFailed        = "move_failed"
	ErrCodeCopyFailed        = "copy_failed"
	ErrCodeAborted           = "aborted"
	ErrCodeConfigInvalid     = "config_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	// RunID 同时写入 journal，便于把 report.json 与审计记录对上。
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Action    string `json:"action"`
	DryRun    bool   `json:"dry_run"`
	Cancelled bool   `json:"cancelled"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []FileResult  `json:"items"`
}

type ReportSummary struct {
	Planned    int `json:"planned"`
	Renamed    int `json:"renamed"`
	Copied     int `json:"copied"`
	Unchanged  int `json:"unchanged"`
	Duplicates int `json:"duplicates"`
	Unresolved int `json:"unresolved"`
	Failed     int `json:"failed"`
}

// FileResult 是单个输入文件的处理结果。Src=="" 表示合成条目（配置错误、批次级错误）。
type FileResult struct {
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Precision string   `json:"precision"`
	Sources   []string `json:"sources"`
	Duplicate bool     `json:"duplicate"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 src 字典序；src=="" 的条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case FileStatusPlanned:
			s.Planned++
		case FileStatusRenamed:
			s.Renamed++
		case FileStatusCopied:
			s.Copied++
		case FileStatusUnchanged:
			s.Unchanged++
		case FileStatusUnresolved:
			s.Unresolved++
		case FileStatusFailed:
			s.Failed++
		}
		if it.Duplicate {
			s.Duplicates++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性：nil 切片统一输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	// 复制一份再补空切片，避免改到调用方的底层数组。
	a.Items = make([]FileResult, len(r.Items))
	copy(a.Items, r.Items)
	for i := range a.Items {
		if a.Items[i].Sources == nil {
			a.Items[i].Sources = []string{}
		}
	}
	return json.Marshal(a)
}
