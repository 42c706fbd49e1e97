//go:build unix

package fsx

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestRename_CrossDeviceEXDEV(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := Rename("/a", "/b")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%T %v", err, err)
	}
}

func TestRenameNoOverwrite_CrossDeviceEXDEV(t *testing.T) {
	old := renameNoReplaceFunc
	renameNoReplaceFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "renameat2", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameNoReplaceFunc = old }()

	dir := t.TempDir()
	err := RenameNoOverwrite(filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg"))
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%T %v", err, err)
	}
	if IsTargetConflict(err) {
		t.Fatalf("EXDEV 不应被当作目标冲突")
	}
}
