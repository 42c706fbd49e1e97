package timesrc

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

// TimeSource 是单个时间来源的能力抽象。
//
// 约束：
// - Extract 绝不向上返回错误：打不开/解析失败一律视为“该来源无候选”，最多记一条日志
// - Extract 只读文件，不做任何写入
type TimeSource interface {
	Name() string
	Extract(path string, kind domain.MediaKind) []domain.TimeCandidate
}

// Options 决定启用哪些可选来源。
type Options struct {
	// Location 用于解释不带时区的时间（EXIF、文件名）；nil 表示 time.Local。
	Location *time.Location

	// FileCreation 启用文件系统创建时间。跨设备复制后通常不可靠，默认关闭。
	FileCreation bool
	// XMPSidecar 启用同名 .xmp 旁车文件。
	XMPSidecar bool

	Logger *zap.Logger
}

// Extractor 按媒体类型组合各来源。
type Extractor struct {
	exif     TimeSource
	video    TimeSource
	filename TimeSource
	xmp      TimeSource // 可选
	ctime    TimeSource // 可选

	logger *zap.Logger
}

func New(opts Options) *Extractor {
	loc := locOrLocal(opts.Location)
	logger := loggerOrNop(opts.Logger)

	e := &Extractor{
		exif:     Exif{Location: loc, Logger: logger},
		video:    VideoMetadata{Location: loc, Logger: logger},
		filename: FilenamePattern{Location: loc, Logger: logger},
		logger:   logger,
	}
	if opts.XMPSidecar {
		e.xmp = XMPSidecar{Location: loc, Logger: logger}
	}
	if opts.FileCreation {
		e.ctime = FileCreation{Location: loc, Logger: logger}
	}
	return e
}

// Sources 返回某类媒体会尝试的来源（按尝试顺序）。
func (e *Extractor) Sources(kind domain.MediaKind) []TimeSource {
	var out []TimeSource
	switch kind {
	case domain.KindImage:
		out = append(out, e.exif)
	case domain.KindVideo:
		out = append(out, e.video)
	default:
		return nil
	}
	if e.xmp != nil {
		out = append(out, e.xmp)
	}
	out = append(out, e.filename)
	if e.ctime != nil {
		out = append(out, e.ctime)
	}
	return out
}

// Collect 汇总某个文件的全部候选；结果可能为空（调用方应把该文件标记为 unresolved）。
func (e *Extractor) Collect(path string, kind domain.MediaKind) []domain.TimeCandidate {
	var out []domain.TimeCandidate
	for _, s := range e.Sources(kind) {
		out = append(out, e.safeExtract(s, path, kind)...)
	}
	return out
}

// safeExtract 把第三方解码器里的 panic 也降级为“无候选”。
func (e *Extractor) safeExtract(s TimeSource, path string, kind domain.MediaKind) (out []domain.TimeCandidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("time source panicked",
				zap.String("source", s.Name()),
				zap.String("file", path),
				zap.String("panic", fmt.Sprint(r)))
			out = nil
		}
	}()
	return s.Extract(path, kind)
}

func locOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
