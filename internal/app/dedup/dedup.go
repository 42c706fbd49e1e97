package dedup

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

// DuplicatePrefix 标记“与同组另一文件字节完全相同”的目标名。
const DuplicatePrefix = "DUPLICATE_"

// Hasher 计算文件内容指纹；相同内容必须得到相同结果。
type Hasher interface {
	Hash(path string) (string, error)
}

// HasherFunc 让普通函数（例如 digest.File）满足 Hasher。
type HasherFunc func(path string) (string, error)

func (f HasherFunc) Hash(path string) (string, error) { return f(path) }

// DuplicateKeyError 表示输入里同一个源文件出现了两次。
type DuplicateKeyError struct {
	Src string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("源文件重复出现：%s", e.Src)
}

// ResidualCollisionError 表示消解之后仍有两个源文件指向同一目标。
type ResidualCollisionError struct {
	Dst  string
	Srcs []string
}

func (e *ResidualCollisionError) Error() string {
	return fmt.Sprintf("目标名冲突无法消解：%s <- %s", e.Dst, strings.Join(e.Srcs, ", "))
}

// group 是同一暂定目标下的成员（proposal 下标，保持出现顺序）。
type group struct {
	dst     string
	members []int
}

// Resolve 把可能重名的提议变成两两不同的最终映射。
//
// - 只为组内成员 >= 2 的文件计算指纹；单独的文件永远不读内容
// - 同组内内容相同的：第一个保留，其余改名为 <目录>/DUPLICATE_<原文件名>（已带前缀的不再叠加）
// - 剩余成员多于一个时按出现顺序编号 _001、_002……，每组从 1 重新开始
// - 读不了的文件视为“内容唯一”，不会被当作重复
func Resolve(props []domain.Proposal, h Hasher, logger *zap.Logger) (domain.FinalMapping, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(domain.FinalMapping, len(props))
	seen := make(map[string]struct{}, len(props))
	index := make(map[string]int, len(props))
	groups := make([]group, 0, len(props))

	for i, p := range props {
		if _, ok := seen[p.Src]; ok {
			return nil, &DuplicateKeyError{Src: p.Src}
		}
		seen[p.Src] = struct{}{}

		out[i] = domain.FinalEntry{Src: p.Src, Dst: p.Dst, Sources: p.Resolved.Sources}

		if gi, ok := index[p.Dst]; ok {
			groups[gi].members = append(groups[gi].members, i)
			continue
		}
		index[p.Dst] = len(groups)
		groups = append(groups, group{dst: p.Dst, members: []int{i}})
	}

	for _, g := range groups {
		if len(g.members) < 2 {
			continue
		}
		resolveGroup(g, props, out, h, logger)
	}

	if err := checkDistinct(out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveGroup(g group, props []domain.Proposal, out domain.FinalMapping, h Hasher, logger *zap.Logger) {
	canonical := make(map[string]struct{}, len(g.members))
	remaining := make([]int, 0, len(g.members))

	for _, i := range g.members {
		src := props[i].Src
		fp, err := h.Hash(src)
		if err != nil {
			logger.Warn("hashing failed; treating content as unique",
				zap.String("file", src), zap.Error(err))
			// 十六进制摘要不含 ':'，不会与真实指纹相撞。
			fp = fmt.Sprintf("unreadable:%d", i)
		}

		if _, ok := canonical[fp]; ok {
			out[i].Dst = filepath.Join(filepath.Dir(g.dst), duplicateName(filepath.Base(src)))
			out[i].Duplicate = true
			logger.Info("true duplicate",
				zap.String("file", src), zap.String("target", out[i].Dst))
			continue
		}
		canonical[fp] = struct{}{}
		remaining = append(remaining, i)
	}

	if len(remaining) < 2 {
		return
	}
	for n, i := range remaining {
		out[i].Suffix = n + 1
		out[i].Dst = WithSuffix(g.dst, n+1)
	}
}

// duplicateName 只加一次前缀：对上次的输出再跑一遍不会叠成 DUPLICATE_DUPLICATE_。
func duplicateName(base string) string {
	if strings.HasPrefix(base, DuplicatePrefix) {
		return base
	}
	return DuplicatePrefix + base
}

// WithSuffix 在扩展名之前插入三位序号：a/2021-06-05.jpg -> a/2021-06-05_001.jpg。
func WithSuffix(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(path, ext), n, ext)
}

func checkDistinct(m domain.FinalMapping) error {
	owner := make(map[string]int, len(m))
	for i, e := range m {
		if j, ok := owner[e.Dst]; ok {
			return &ResidualCollisionError{Dst: e.Dst, Srcs: []string{m[j].Src, e.Src}}
		}
		owner[e.Dst] = i
	}
	return nil
}
