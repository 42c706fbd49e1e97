package timesrc

import (
	"os"
	"time"

	"github.com/abema/go-mp4"
	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

// ISO/IEC 14496-12 的时间以 1904-01-01 UTC 为纪元；这是它与 Unix 纪元的秒差。
const isoBMFFEpochOffset int64 = 2082844800

// VideoMetadata 读取 MP4/MOV 容器 moov/mvhd 里的创建时间。
type VideoMetadata struct {
	Location *time.Location
	Logger   *zap.Logger
}

func (VideoMetadata) Name() string { return string(domain.SourceVideoMetadata) }

func (v VideoMetadata) Extract(path string, kind domain.MediaKind) []domain.TimeCandidate {
	if kind != domain.KindVideo {
		return nil
	}
	logger := loggerOrNop(v.Logger).With(zap.String("file", path))

	f, err := os.Open(path)
	if err != nil {
		logger.Debug("opening file for video metadata", zap.Error(err))
		return nil
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		logger.Debug("extracting mvhd", zap.Error(err))
		return nil
	}
	for _, b := range boxes {
		mvhd, ok := b.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		t, ok := isoBMFFTime(mvhd.GetCreationTime())
		if !ok {
			logger.Debug("mvhd carries no creation time")
			continue
		}
		return []domain.TimeCandidate{{
			Source:    domain.SourceVideoMetadata,
			Timestamp: t.In(locOrLocal(v.Location)),
			Precision: domain.DateTime,
		}}
	}
	return nil
}

// isoBMFFTime 把 1904 纪元秒转换成 time.Time；0 表示编码器没有填写。
func isoBMFFTime(sec uint64) (time.Time, bool) {
	if sec == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(sec)-isoBMFFEpochOffset, 0).UTC(), true
}
