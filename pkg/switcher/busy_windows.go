//go:build windows

package switcher

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Windows reports a shim held open by another process as
// ERROR_SHARING_VIOLATION (32) or ERROR_LOCK_VIOLATION (33); some
// toolchains surface ETXTBSY-style code 26 instead.
func isFileBusy(err error) bool {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return errno == 26 || errno == windows.ERROR_SHARING_VIOLATION || errno == windows.ERROR_LOCK_VIOLATION
	}
	return false
}
