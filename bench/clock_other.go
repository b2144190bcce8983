//go:build !linux

package bench

import "time"

func resolution() time.Duration {
	return observedResolution()
}
