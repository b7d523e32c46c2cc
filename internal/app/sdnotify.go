package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "schedsync/pkg/logx"
)

// notifier reports service state to systemd. Outside systemd every call is a no-op.
type notifier struct {
	log    logx.Logger
	notify func(unset bool, state string) (bool, error)
	wdog   func(unset bool) (time.Duration, error)
}

func newNotifier(log logx.Logger) notifier {
	return notifier{log: log, notify: daemon.SdNotify, wdog: daemon.SdWatchdogEnabled}
}

func (n notifier) send(state string) {
	ok, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if ok {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

func (n notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n notifier) Stopping() { n.send(daemon.SdNotifyStopping) }
func (n notifier) Reloading() {
	n.send(daemon.SdNotifyReloading)
}

// watchdog pings systemd at half the configured interval until ctx ends.
// It returns immediately when the watchdog is not enabled.
func (n notifier) watchdog(ctx context.Context) error {
	every, err := n.wdog(false)
	if err != nil || every <= 0 {
		return nil
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
