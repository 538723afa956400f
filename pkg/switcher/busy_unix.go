//go:build !windows

package switcher

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isFileBusy(err error) bool {
	return errors.Is(err, unix.ETXTBSY)
}
