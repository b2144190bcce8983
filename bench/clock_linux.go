//go:build linux

package bench

import (
	"time"

	"golang.org/x/sys/unix"
)

func resolution() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return observedResolution()
	}
	return time.Duration(ts.Nano())
}
