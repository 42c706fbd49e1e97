package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV、写入中断等错误。
var (
	renameFunc          = os.Rename
	renameNoReplaceFunc = renameNoReplace
	copyFunc            = io.Copy
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
// 上层可把它映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 按产品契约：遇到 EXDEV 必须失败并提示用户，不做 copy+delete。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q；请确保源与目标在同一文件系统，或改用 copy（本工具不会隐式 copy+delete）：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// IsTargetConflict 判断 err 是否表示“目标已被占用”（已存在或类型冲突）。
func IsTargetConflict(err error) bool {
	return errors.Is(err, fs.ErrExist) || IsPathTypeConflict(err)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
// 注意：os.Rename 会覆盖已存在的目标，只用于内部状态文件。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// RenameNoOverwrite 把 src 改名为 dst；dst 已存在时失败（errors.Is(err, fs.ErrExist)）。
//
// Linux 上使用 renameat2(RENAME_NOREPLACE)，由内核保证不覆盖；
// 其它平台先 Lstat 再 rename，存在极小的竞争窗口。
func RenameNoOverwrite(src, dst string) error {
	if err := checkAbsent(dst); err != nil {
		return err
	}
	if err := renameNoReplaceFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// renameChecked 是不支持原子“不覆盖”时的退化实现。
func renameChecked(src, dst string) error {
	if err := checkAbsent(dst); err != nil {
		return err
	}
	return renameFunc(src, dst)
}

// CopyFileNoOverwrite 把 src 的内容复制到 dst（独占创建，保留权限与修改时间）。
// dst 已存在时失败且不改动它；复制中途失败会删除写了一半的 dst。
func CopyFileNoOverwrite(src, dst string) (err error) {
	if err := checkAbsent(dst); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: src, Want: "regular file", Got: fi.Mode().Type().String()}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = out.Close()
		}
		_ = os.Remove(dst)
	}()

	if _, err = copyFunc(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	closed = true
	if err = out.Close(); err != nil {
		return err
	}

	// 修改时间尽量保留；失败不影响内容正确性。
	_ = os.Chtimes(dst, fi.ModTime(), fi.ModTime())
	return nil
}

// EnsureDir 确保 dir 存在且是目录。
func EnsureDir(dir string) error {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
		}
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// checkAbsent 检查 dst 当前不存在。
func checkAbsent(dst string) error {
	fi, err := os.Lstat(dst)
	if err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		return &fs.PathError{Op: "create", Path: dst, Err: fs.ErrExist}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteFileAtomicReplace 写入并覆盖同名文件（临时文件 + rename；Windows 上为 best-effort）。
// 仅用于 report 等工具自身的状态文件。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 创建同目录临时文件（前缀带 '.'，避免污染媒体库视图）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// rename 原子替换到最终文件名。
	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
