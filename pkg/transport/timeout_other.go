//go:build !unix

package transport

func isSysTimeout(err error) bool {
	return false
}
