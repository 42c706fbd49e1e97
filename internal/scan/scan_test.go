package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/autorename/internal/domain"
)

func TestScanMedia_TopLevelOnlyByDefault(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "b.JPG"))
	touch(t, filepath.Join(root, "a.mov"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "c.jpg"))

	got, err := ScanMedia(root, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 个媒体文件，实际 %d", len(got))
	}
	// 按 RelPath 稳定排序。
	if got[0].RelPath != "a.mov" || got[1].RelPath != "b.JPG" {
		t.Fatalf("排序不符合预期：%q, %q", got[0].RelPath, got[1].RelPath)
	}
	if got[0].Kind != domain.KindVideo || got[1].Kind != domain.KindImage {
		t.Fatalf("类型判断不符合预期：%v, %v", got[0].Kind, got[1].Kind)
	}
	if got[1].Ext != ".JPG" || got[1].Base != "b" {
		t.Fatalf("应保留原始扩展名大小写：%+v", got[1])
	}
}

func TestScanMedia_RecursiveExcludesStateDirAndConfigured(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, StateDirName, "x.jpg"))
	touch(t, filepath.Join(root, "temp", "A-01.mp4"))
	touch(t, filepath.Join(root, "ok", "B-02.mp4"))

	got, err := ScanMedia(root, Options{Recursive: true, ExcludeDirs: []string{"temp"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个媒体文件，实际 %d", len(got))
	}
	wantRel := filepath.Join("ok", "B-02.mp4")
	if got[0].RelPath != wantRel {
		t.Fatalf("期望 rel=%q，实际=%q", wantRel, got[0].RelPath)
	}
}

func TestScanMedia_ExtensionFilter(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "b.ARW"))
	touch(t, filepath.Join(root, "c.mp4"))

	got, err := ScanMedia(root, Options{Extensions: []string{"arw", ".MP4"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 || got[0].RelPath != "b.ARW" || got[1].RelPath != "c.mp4" {
		t.Fatalf("扩展名过滤不符合预期：%+v", got)
	}
}

func TestScanMedia_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	if err := os.Symlink(filepath.Join(root, "a.jpg"), filepath.Join(root, "link.jpg")); err != nil {
		t.Skipf("当前平台不支持符号链接：%v", err)
	}

	got, err := ScanMedia(root, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].RelPath != "a.jpg" {
		t.Fatalf("符号链接应被跳过：%+v", got)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
