//go:build windows

package shim

import (
	"os"
	"os/exec"
	"os/signal"

	"github.com/bobvm/bob/pkg/errors"
)

// Exec spawns the editor, forwards signals, waits, and exits with the
// child's exit code. Windows has no execve, so the shim stays alive as
// a thin parent.
func Exec(binary string, args []string) error {
	cmd := exec.Command(binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "cannot start %s", binary)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)
	signal.Stop(sigs)

	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "waiting on %s failed", binary)
	}
	os.Exit(0)
	return nil
}
