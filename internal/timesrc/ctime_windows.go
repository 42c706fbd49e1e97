//go:build windows

package timesrc

import (
	"os"
	"syscall"
	"time"
)

func birthTime(path string) (time.Time, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false, err
	}
	d, ok := fi.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, false, nil
	}
	return time.Unix(0, d.CreationTime.Nanoseconds()), true, nil
}
