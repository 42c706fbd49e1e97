//go:build !linux && !darwin && !windows

package timesrc

import "time"

func birthTime(string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
