//go:build !windows

package shim

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/bobvm/bob/pkg/errors"
)

// Exec replaces the current process with the editor. Arguments and
// environment are forwarded wholesale; signal forwarding is moot since
// no shim process remains.
func Exec(binary string, args []string) error {
	argv := append([]string{binary}, args...)
	if err := unix.Exec(binary, argv, os.Environ()); err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "cannot exec %s", binary)
	}
	return nil
}
