//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isSysTimeout(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT)
}
