package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/gmeeker/fatbuild/pkg/logger"
)

// SafeGroup wraps errgroup.Group with panic recovery so a panicking
// per-architecture worker surfaces as an error instead of crashing the
// whole run.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery.
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{group: g, logger: log}, ctx
}

// Go runs the given function in a new goroutine. Any panic is converted
// to an error and logged with its stack trace.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(stack)))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()
		return fn()
	})
}

// SetLimit sets the maximum number of concurrent goroutines.
func (sg *SafeGroup) SetLimit(n int) {
	sg.group.SetLimit(n)
}

// Wait blocks until all goroutines have completed or any returns an
// error, and returns the first error encountered.
func (sg *SafeGroup) Wait() (err error) {
	defer func() {
		if r := recover(); r != nil {
			sg.logger.Error("Panic during SafeGroup.Wait()",
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
			err = fmt.Errorf("wait panic: %v", r)
		}
	}()
	return sg.group.Wait()
}
