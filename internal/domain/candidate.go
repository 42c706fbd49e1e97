package domain

import (
	"strings"
	"time"
)

// Source 标记一个时间候选来自哪里（同时也是 report 里的 sources 字段）。
type Source string

const (
	SourceExifOriginal    Source = "exif_original"
	SourceExifDigitized   Source = "exif_digitized"
	SourceExifImageTime   Source = "exif_image_time"
	SourceFilenamePattern Source = "filename"
	SourceVideoMetadata   Source = "video_metadata"
	SourceFileCreation    Source = "file_creation"
	SourceXMPSidecar      Source = "xmp_sidecar"
)

// Precision 区分“只知道日期”与“知道具体时刻”。
type Precision int

const (
	DateOnly Precision = iota + 1
	DateTime
)

func (p Precision) String() string {
	switch p {
	case DateOnly:
		return "date"
	case DateTime:
		return "datetime"
	default:
		return ""
	}
}

// dateOnlySentinelNanos 是 DateOnly 候选的哨兵时刻（23:59:59 + 999µs）。
//
// 同一天里，任何真实时刻都严格早于哨兵，因此“取最早”时精确时刻胜出；
// 不同天之间仍可直接比较。已知近似：真实时刻恰好落在哨兵上时无法区分，
// 这里靠 Precision 字段兜底，不依赖哨兵值反推精度。
const dateOnlySentinelNanos = 999 * int(time.Microsecond)

// DateOnlyAt 返回某天的哨兵时刻（只取 t 的年月日）。
func DateOnlyAt(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 23, 59, 59, dateOnlySentinelNanos, loc)
}

// TimeCandidate 是某一个来源给出的时间提议。只在单个文件的处理过程中存活。
type TimeCandidate struct {
	Source    Source
	Timestamp time.Time // DateOnly 时为哨兵时刻
	Precision Precision
}

// ResolvedTime 是选中的最早候选 + 来源追溯。
type ResolvedTime struct {
	Timestamp time.Time
	Precision Precision
	// Sources 是与最小值相等的全部来源（已排序、去重）。
	Sources []Source
}

// SourceNames 把 Sources 转成字符串切片（report/日志用）。
func (r ResolvedTime) SourceNames() []string {
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, string(s))
	}
	return out
}

// String 给日志用：DateOnly 不带时刻。
func (r ResolvedTime) String() string {
	if r.Precision == DateOnly {
		return r.Timestamp.Format("2006-01-02") + " (" + strings.Join(r.SourceNames(), ",") + ")"
	}
	return r.Timestamp.Format("2006-01-02 15:04:05") + " (" + strings.Join(r.SourceNames(), ",") + ")"
}
