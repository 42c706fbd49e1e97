package timesrc

import (
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

const exifSourceName = "exif"

// exifLayout 是 EXIF 规范里固定的时间格式（无时区）。
const exifLayout = "2006:01:02 15:04:05"

// 三个槽位互相独立：任一缺失/坏值只跳过它自己。
var exifSlots = []struct {
	field  exif.FieldName
	source domain.Source
}{
	{exif.DateTimeOriginal, domain.SourceExifOriginal},
	{exif.DateTimeDigitized, domain.SourceExifDigitized},
	{exif.DateTime, domain.SourceExifImageTime},
}

// Exif 读取静态图片的 EXIF 时间。
type Exif struct {
	Location *time.Location
	Logger   *zap.Logger
}

// Name 返回各槽位来源标签的共同前缀；一个 Exif 实例会产出三种 exif_* 标签。
func (Exif) Name() string { return exifSourceName }

func (e Exif) Extract(path string, kind domain.MediaKind) []domain.TimeCandidate {
	if kind != domain.KindImage {
		return nil
	}
	logger := loggerOrNop(e.Logger).With(zap.String("file", path))

	f, err := os.Open(path)
	if err != nil {
		logger.Debug("opening file for EXIF", zap.Error(err))
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		// 很多图片本来就没有 EXIF，这是常态而不是异常。
		logger.Debug("no usable EXIF", zap.Error(err))
		return nil
	}

	loc := locOrLocal(e.Location)
	out := make([]domain.TimeCandidate, 0, len(exifSlots))
	for _, slot := range exifSlots {
		tag, err := x.Get(slot.field)
		if err != nil {
			logger.Debug("EXIF tag absent", zap.String("tag", string(slot.field)))
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			logger.Debug("EXIF tag is not a string", zap.String("tag", string(slot.field)), zap.Error(err))
			continue
		}
		t, ok := parseExifTime(raw, loc)
		if !ok {
			logger.Warn("EXIF time not parsable",
				zap.String("tag", string(slot.field)),
				zap.String("value", raw))
			continue
		}
		out = append(out, domain.TimeCandidate{
			Source:    slot.source,
			Timestamp: t,
			Precision: domain.DateTime,
		})
	}
	return out
}

func parseExifTime(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	t, err := time.ParseInLocation(exifLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
