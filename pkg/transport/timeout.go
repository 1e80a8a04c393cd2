package transport

import (
	"context"
	"errors"
	"net"
	"os"
)

// IsTimeout reports whether err is a timeout-class error: an expired
// deadline, a timed out context or a kernel level connection timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return isSysTimeout(err)
}
