package timesrc

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/John-Robertt/autorename/internal/domain"
)

// 按优先级排列；HTML 解析器会把标签名/属性名统一转成小写。
var xmpDateKeys = []string{
	"exif:datetimeoriginal",
	"xmp:createdate",
	"photoshop:datecreated",
}

// 带时区的布局在前；不带时区的按 Location 解释。
var (
	xmpZonedLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04Z07:00",
	}
	xmpNaiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

// XMPSidecar 读取与媒体同名的 .xmp 旁车文件（photo.jpg.xmp 或 photo.xmp）。
type XMPSidecar struct {
	Location *time.Location
	Logger   *zap.Logger
}

func (XMPSidecar) Name() string { return string(domain.SourceXMPSidecar) }

func (x XMPSidecar) Extract(path string, _ domain.MediaKind) []domain.TimeCandidate {
	logger := loggerOrNop(x.Logger).With(zap.String("file", path))
	for _, p := range sidecarPaths(path) {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		c, ok := parseXMP(b, locOrLocal(x.Location))
		if !ok {
			logger.Debug("sidecar carries no usable date", zap.String("sidecar", p))
			return nil
		}
		return []domain.TimeCandidate{c}
	}
	return nil
}

func sidecarPaths(path string) []string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return []string{path + ".xmp", stem + ".xmp", stem + ".XMP"}
}

// parseXMP 同时接受属性写法（rdf:Description 上的属性）与元素写法。
func parseXMP(b []byte, loc *time.Location) (domain.TimeCandidate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return domain.TimeCandidate{}, false
	}

	found := make(map[string]string, len(xmpDateKeys))
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(goquery.NodeName(s))
		for _, key := range xmpDateKeys {
			if _, ok := found[key]; ok {
				continue
			}
			if v, ok := s.Attr(key); ok && strings.TrimSpace(v) != "" {
				found[key] = strings.TrimSpace(v)
				continue
			}
			if name == key {
				if v := strings.TrimSpace(s.Text()); v != "" {
					found[key] = v
				}
			}
		}
	})

	for _, key := range xmpDateKeys {
		v, ok := found[key]
		if !ok {
			continue
		}
		if c, ok := parseXMPDate(v, loc); ok {
			return c, true
		}
	}
	return domain.TimeCandidate{}, false
}

// parseXMPDate 解析 ISO 8601 的几种常见截断形式；小数秒在解析时可省略也可出现。
func parseXMPDate(v string, loc *time.Location) (domain.TimeCandidate, bool) {
	c := domain.TimeCandidate{Source: domain.SourceXMPSidecar, Precision: domain.DateTime}
	for _, layout := range xmpZonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			c.Timestamp = t.In(loc)
			return c, true
		}
	}
	for _, layout := range xmpNaiveLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			c.Timestamp = t
			return c, true
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		c.Timestamp = domain.DateOnlyAt(t.Year(), t.Month(), t.Day(), loc)
		c.Precision = domain.DateOnly
		return c, true
	}
	return domain.TimeCandidate{}, false
}
