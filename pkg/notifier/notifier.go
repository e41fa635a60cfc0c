// Package notifier provides desktop notifications for finished runs.
package notifier

import (
	"fmt"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/gmeeker/fatbuild/pkg/logger"
	"github.com/gmeeker/fatbuild/pkg/types"
)

// BuildNotifier announces run outcomes through the platform notification
// facility. It is a no-op unless enabled.
type BuildNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	logger       logger.Logger
}

// New creates a notifier from the request's notification settings.
func New(cfg types.NotificationConfig, log logger.Logger) *BuildNotifier {
	enabled := cfg.Enabled != nil && *cfg.Enabled
	return &BuildNotifier{
		enabled:      enabled,
		successSound: cfg.SuccessSound,
		failureSound: cfg.FailureSound,
		logger:       log,
	}
}

// NotifySuccess announces a completed multi-architecture run.
func (n *BuildNotifier) NotifySuccess(name string, archs []types.Arch, duration time.Duration) {
	if !n.enabled {
		return
	}
	title := "✅ Universal Build Succeeded"
	message := fmt.Sprintf("%s (%d archs) in %s", name, len(archs), formatDuration(duration))
	n.send(title, message, n.successSound)
}

// NotifyFailure announces a failed run.
func (n *BuildNotifier) NotifyFailure(name string, err error) {
	if !n.enabled {
		return
	}
	title := "❌ Universal Build Failed"
	message := fmt.Sprintf("%s: %v", name, err)
	n.send(title, message, n.failureSound)
}

func (n *BuildNotifier) send(title, message, soundName string) {
	if runtime.GOOS != "darwin" && runtime.GOOS != "linux" && runtime.GOOS != "windows" {
		if n.logger != nil {
			n.logger.Info(fmt.Sprintf("%s: %s", title, message))
		}
		return
	}
	if err := beeep.Notify(title, message, ""); err != nil && n.logger != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
	if soundName != "" {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil && n.logger != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
