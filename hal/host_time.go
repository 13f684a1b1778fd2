package hal

import "time"

// frameDuration converts a refresh rate into a per-frame interval.
func frameDuration(hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
