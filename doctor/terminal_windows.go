//go:build windows

package doctor

import (
	"context"
	"os"
	"os/signal"
)

func resetTerminal() {}

func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
