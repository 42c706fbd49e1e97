package timesrc

import (
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

// 分隔符宽松：年月日之间允许 '-', '_', ' ' 或不分隔；时分秒之间额外允许 ':'。
// 前缀用非贪婪的 .*?，保证取到文件名里最靠左的日期。
const (
	datePattern = `^.*?(\d{4})[-_ ]?(\d{2})[-_ ]?(\d{2})`
	timePattern = `(\d{2})[-_: ]?(\d{2})[-_: ]?(\d{2})`
)

var (
	dateTimeRE = regexp.MustCompile(datePattern + `[-_ ]?` + timePattern)
	dateRE     = regexp.MustCompile(datePattern)
)

// FilenamePattern 从文件名（不含目录）中提取嵌入的日期/时间。
type FilenamePattern struct {
	Location *time.Location
	Logger   *zap.Logger
}

func (FilenamePattern) Name() string { return string(domain.SourceFilenamePattern) }

func (f FilenamePattern) Extract(path string, _ domain.MediaKind) []domain.TimeCandidate {
	name := filepath.Base(path)
	c, ok := ParseFilename(name, locOrLocal(f.Location))
	if !ok {
		loggerOrNop(f.Logger).Debug("filename carries no date", zap.String("file", path))
		return nil
	}
	return []domain.TimeCandidate{c}
}

// ParseFilename 先尝试“日期+时间”的完整匹配；匹配不到或数值越界时回退到“仅日期”。
// 越界（例如 13 月、24 点、2 月 30 日）一律视为未匹配，而不是错误。
func ParseFilename(name string, loc *time.Location) (domain.TimeCandidate, bool) {
	if m := dateTimeRE.FindStringSubmatch(name); m != nil {
		n := atoiAll(m[1:7])
		if validDate(n[0], n[1], n[2]) && validClock(n[3], n[4], n[5]) {
			return domain.TimeCandidate{
				Source:    domain.SourceFilenamePattern,
				Timestamp: time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, loc),
				Precision: domain.DateTime,
			}, true
		}
	}

	if m := dateRE.FindStringSubmatch(name); m != nil {
		n := atoiAll(m[1:4])
		if validDate(n[0], n[1], n[2]) {
			return domain.TimeCandidate{
				Source:    domain.SourceFilenamePattern,
				Timestamp: domain.DateOnlyAt(n[0], time.Month(n[1]), n[2], loc),
				Precision: domain.DateOnly,
			}, true
		}
	}
	return domain.TimeCandidate{}, false
}

func atoiAll(ss []string) []int {
	out := make([]int, len(ss))
	for i, s := range ss {
		// 正则只放行数字，这里不会失败。
		out[i], _ = strconv.Atoi(s)
	}
	return out
}

func validDate(y, m, d int) bool {
	if y < 1 || m < 1 || m > 12 || d < 1 {
		return false
	}
	// time.Date 会把 2 月 30 日规范化成 3 月；回读日期不一致即越界。
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Month() == time.Month(m) && t.Day() == d
}

func validClock(h, m, s int) bool {
	return h >= 0 && h <= 23 && m >= 0 && m <= 59 && s >= 0 && s <= 59
}
