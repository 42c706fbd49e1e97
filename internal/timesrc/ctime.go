package timesrc

import (
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

// FileCreation 读取文件系统记录的创建（birth）时间。平台不支持时静默返回空。
type FileCreation struct {
	Location *time.Location
	Logger   *zap.Logger
}

func (FileCreation) Name() string { return string(domain.SourceFileCreation) }

func (c FileCreation) Extract(path string, _ domain.MediaKind) []domain.TimeCandidate {
	t, ok, err := birthTime(path)
	if err != nil {
		loggerOrNop(c.Logger).Debug("reading birth time", zap.String("file", path), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return []domain.TimeCandidate{{
		Source:    domain.SourceFileCreation,
		Timestamp: t.In(locOrLocal(c.Location)),
		Precision: domain.DateTime,
	}}
}
