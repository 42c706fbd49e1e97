package domain

// Proposal 是 Rename Proposer 对单个文件给出的暂定目标。
// 同一批次里 Src 唯一；Dst 可能重复（由 dedup 解决）。
type Proposal struct {
	Src      string // 原文件绝对路径
	Dst      string // 暂定目标绝对路径
	Resolved ResolvedTime
}

// FinalEntry 是消解冲突后的一条最终映射。
type FinalEntry struct {
	Src     string
	Dst     string
	Sources []Source

	// Duplicate 表示该文件与同组另一文件字节完全相同，目标名带 DUPLICATE_ 前缀。
	Duplicate bool
	// Suffix 是追加的三位序号（1 起）；0 表示未编号。
	Suffix int
}

// FinalMapping 是 Action Executor 唯一允许消费的结构。
//
// 不变量：
// - Dst 两两不同
// - 顺序与 Proposal 输入顺序一致（稳定、可复现）
type FinalMapping []FinalEntry

// Targets 返回 Dst -> Src 的索引（执行阶段判断“目标是否是另一个待移动的源”时使用）。
func (m FinalMapping) Targets() map[string]string {
	out := make(map[string]string, len(m))
	for _, e := range m {
		out[e.Dst] = e.Src
	}
	return out
}
