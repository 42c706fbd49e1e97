//go:build linux

package timesrc

import (
	"time"

	"golang.org/x/sys/unix"
)

// birthTime 依赖 statx；老内核或不记录 btime 的文件系统会返回 ok=false。
func birthTime(path string) (time.Time, bool, error) {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME, &stx); err != nil {
		if err == unix.ENOSYS {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true, nil
}
