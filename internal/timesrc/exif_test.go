package timesrc

import (
	"testing"
	"time"

	"github.com/John-Robertt/autorename/internal/domain"
)

func TestExif_AllThreeSlots(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jpg", buildExifJPEG(t,
		"2021:06:07 08:00:00",
		"2021:06:05 15:29:57",
		"2021:06:05 15:30:00",
	))

	got := Exif{Location: time.UTC}.Extract(p, domain.KindImage)
	if len(got) != 3 {
		t.Fatalf("期望 3 个候选，实际 %d: %+v", len(got), got)
	}
	want := map[domain.Source]time.Time{
		domain.SourceExifOriginal:  time.Date(2021, 6, 5, 15, 29, 57, 0, time.UTC),
		domain.SourceExifDigitized: time.Date(2021, 6, 5, 15, 30, 0, 0, time.UTC),
		domain.SourceExifImageTime: time.Date(2021, 6, 7, 8, 0, 0, 0, time.UTC),
	}
	for _, c := range got {
		w, ok := want[c.Source]
		if !ok {
			t.Fatalf("出现未知来源：%q", c.Source)
		}
		if !c.Timestamp.Equal(w) || c.Precision != domain.DateTime {
			t.Fatalf("%s: 期望 %v，实际 %v (%v)", c.Source, w, c.Timestamp, c.Precision)
		}
	}
}

func TestExif_BadSlotSkippedOthersKept(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jpg", buildExifJPEG(t,
		"0000:00:00 00:00:00",
		"2021:06:05 15:29:57",
		"",
	))

	got := Exif{Location: time.UTC}.Extract(p, domain.KindImage)
	if len(got) != 1 || got[0].Source != domain.SourceExifOriginal {
		t.Fatalf("期望只剩 exif_original，实际 %+v", got)
	}
}

func TestExif_NotAnImageOrNoExif(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jpg", []byte("not a jpeg at all"))
	if got := (Exif{}).Extract(p, domain.KindImage); len(got) != 0 {
		t.Fatalf("期望无候选，实际 %+v", got)
	}

	// 视频永远不读 EXIF。
	p = writeFile(t, dir, "b.jpg", buildExifJPEG(t, "", "2021:06:05 15:29:57", ""))
	if got := (Exif{}).Extract(p, domain.KindVideo); len(got) != 0 {
		t.Fatalf("视频不应读取 EXIF，实际 %+v", got)
	}

	if got := (Exif{}).Extract(dir+"/missing.jpg", domain.KindImage); len(got) != 0 {
		t.Fatalf("不存在的文件应无候选，实际 %+v", got)
	}
}
