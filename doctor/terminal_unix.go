//go:build !windows

package doctor

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

func resetTerminal() {
	exec.Command("stty", "sane").Run()
}

// interruptible cancels the returned context on Ctrl+C or SIGTERM so an
// in-progress capture releases the microphone before exit.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
