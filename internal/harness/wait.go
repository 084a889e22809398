package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/jbweber/crucible/internal/hostctl"
)

// waitForPowerOff blocks until the VM reports powered off, polling at the
// configured interval. The unattended installer powers the VM off when it
// finishes, so powered-off is the install-complete signal.
//
// A failed status query is normally logged and retried as an unknown state
// on the next poll, so a transient control-plane hiccup does not kill a long
// install; with StrictStatusErrors set it aborts instead, so a dead control
// plane is not mistaken for an install that is merely still running.
//
// With InstallTimeout zero this polls forever, matching the historical
// harness behavior. The default configuration bounds it and returns
// InstallTimeoutError on exhaustion.
func (o *orchestrator) waitForPowerOff(ctx context.Context, vmid int) error {
	log := o.log.WithField("vmid", vmid)

	if delay := o.cfg.SettleDelay.Std(); delay > 0 {
		log.WithField("delay", delay).Debug("waiting for installer to start")
		if err := o.sleep(ctx, delay); err != nil {
			return err
		}
	}

	interval := o.cfg.PollInterval.Std()
	timeout := o.cfg.InstallTimeout.Std()
	log.WithField("interval", interval).Info("waiting for install to power VM off")

	var elapsed time.Duration
	for {
		state, err := o.ctl.PowerState(ctx, vmid)
		if err != nil {
			if o.cfg.StrictStatusErrors {
				return fmt.Errorf("aborting install wait: %w", err)
			}
			log.WithError(err).Warn("status query failed, retrying")
			state = hostctl.PowerUnknown
		}

		if state == hostctl.PowerOff {
			return nil
		}
		log.WithField("state", state).Debug("VM still up")

		if timeout > 0 && elapsed >= timeout {
			return &InstallTimeoutError{VMID: vmid, Timeout: timeout}
		}

		if err := o.sleep(ctx, interval); err != nil {
			return err
		}
		elapsed += interval
	}
}

// sleepContext sleeps for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
