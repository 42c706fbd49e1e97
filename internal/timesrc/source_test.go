package timesrc

import (
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/autorename/internal/app"
	"github.com/John-Robertt/autorename/internal/domain"
)

type panicSource struct{}

func (panicSource) Name() string { return "panic" }
func (panicSource) Extract(string, domain.MediaKind) []domain.TimeCandidate {
	panic("decoder blew up")
}

func TestExtractor_DispatchByKind(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "IMG_20210605_152957.jpg", buildExifJPEG(t, "", "2021:06:05 15:29:50", ""))
	vid := writeFile(t, dir, "Video-2021-06-22-10-12-58_8280.MOV", []byte("garbage"))

	e := New(Options{Location: time.UTC})

	got := e.Collect(img, domain.KindImage)
	if len(got) != 2 {
		t.Fatalf("图片期望 2 个候选（exif + 文件名），实际 %+v", got)
	}

	got = e.Collect(vid, domain.KindVideo)
	if len(got) != 1 || got[0].Source != domain.SourceFilenamePattern {
		t.Fatalf("视频期望只有文件名候选，实际 %+v", got)
	}

	if got := e.Collect(img, domain.KindUnknown); got != nil {
		t.Fatalf("未知类型不应产生候选，实际 %+v", got)
	}
}

func TestExtractor_OptionalSources(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "holiday.jpg", []byte("x"))
	writeFile(t, dir, "holiday.xmp", []byte(xmpElementStyle))

	if got := New(Options{Location: time.UTC}).Collect(img, domain.KindImage); len(got) != 0 {
		t.Fatalf("默认不读旁车，实际 %+v", got)
	}

	got := New(Options{Location: time.UTC, XMPSidecar: true}).Collect(img, domain.KindImage)
	if len(got) != 1 || got[0].Source != domain.SourceXMPSidecar {
		t.Fatalf("期望 xmp_sidecar 候选，实际 %+v", got)
	}

	for _, s := range New(Options{FileCreation: true}).Sources(domain.KindVideo) {
		if s.Name() == string(domain.SourceFileCreation) {
			return
		}
	}
	t.Fatalf("启用 FileCreation 后应包含 file_creation 来源")
}

func TestExtractor_PanickingSourceYieldsNothing(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "IMG_20210605_152957.jpg", []byte("x"))

	e := New(Options{Location: time.UTC})
	e.exif = panicSource{}

	got := e.Collect(img, domain.KindImage)
	if len(got) != 1 || got[0].Source != domain.SourceFilenamePattern {
		t.Fatalf("panic 的来源应被忽略，其余来源照常，实际 %+v", got)
	}
}

func TestExtractor_ExifOlderThanFilenameWins(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "IMG_20210605_152957.jpg", buildExifJPEG(t, "2021:06:07 09:00:00", "2021:06:05 15:29:50", ""))

	rt, err := app.SelectOldest(New(Options{Location: time.UTC}).Collect(img, domain.KindImage))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := time.Date(2021, 6, 5, 15, 29, 50, 0, time.UTC)
	if !rt.Timestamp.Equal(want) || rt.Precision != domain.DateTime {
		t.Fatalf("期望 EXIF 原始时间胜出，实际 %s", rt)
	}
	if len(rt.Sources) != 1 || rt.Sources[0] != domain.SourceExifOriginal {
		t.Fatalf("来源只应是 exif_original，实际 %v", rt.Sources)
	}
}

func TestExtractor_SourceNamesMatchTags(t *testing.T) {
	e := New(Options{Location: time.UTC, FileCreation: true, XMPSidecar: true})
	for _, kind := range []domain.MediaKind{domain.KindImage, domain.KindVideo} {
		seen := map[string]bool{}
		for _, s := range e.Sources(kind) {
			if s.Name() == "" || seen[s.Name()] {
				t.Fatalf("来源名为空或重复：%q", s.Name())
			}
			seen[s.Name()] = true
		}
	}
	for _, slot := range exifSlots {
		if !strings.HasPrefix(string(slot.source), Exif{}.Name()+"_") {
			t.Fatalf("EXIF 标签 %q 应以 %q 为前缀", slot.source, Exif{}.Name())
		}
	}
}
