package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/crucible/internal/build"
	"github.com/jbweber/crucible/internal/config"
	"github.com/jbweber/crucible/internal/hostctl"
)

// Run executes the full provisioning workflow against the host using the
// tools named in the configuration.
func Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	o := newOrchestrator(cfg,
		hostctl.NewClient(hostctl.NewExecRunner(cfg.ControlTool)),
		build.NewBuilder(cfg.BuilderTool),
		build.NewResolver(cfg.ResolverTool),
		logger)
	return o.Run(ctx)
}

// Cleanup executes only the cleanup phase: local artifacts, the stale test
// VM, and the stale overlay ISO. Useful after a run aborted midway.
func Cleanup(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	o := newOrchestrator(cfg,
		hostctl.NewClient(hostctl.NewExecRunner(cfg.ControlTool)),
		build.NewBuilder(cfg.BuilderTool),
		build.NewResolver(cfg.ResolverTool),
		logger)
	return o.Cleanup(ctx)
}

// orchestrator holds one run's configuration and collaborators. Collaborator
// fields are interfaces so tests inject mocks; sleep and removeArtifacts are
// injectable for the same reason.
type orchestrator struct {
	cfg     *config.Config
	ctl     controlPlane
	builder imageBuilder
	base    baseImageSource
	log     *logrus.Entry
	runID   string

	sleep           func(ctx context.Context, d time.Duration) error
	removeArtifacts func(paths ...string) error
}

func newOrchestrator(cfg *config.Config, ctl controlPlane, builder imageBuilder, base baseImageSource, logger *logrus.Logger) *orchestrator {
	runID := uuid.NewString()
	return &orchestrator{
		cfg:             cfg,
		ctl:             ctl,
		builder:         builder,
		base:            base,
		log:             logger.WithFields(logrus.Fields{"run_id": runID, "vm_name": cfg.VMName}),
		runID:           runID,
		sleep:           sleepContext,
		removeArtifacts: build.RemoveArtifacts,
	}
}

// Run drives the whole workflow. Any failure aborts the sequence where it
// happened; partially provisioned host state is left for the next run's
// cleanup phase.
func (o *orchestrator) Run(ctx context.Context) error {
	o.log.Info("starting provisioning run")

	// Steps 1-3: start from a clean slate.
	if err := o.Cleanup(ctx); err != nil {
		return err
	}

	// Step 4: build the overlay image.
	if err := o.builder.Preflight(); err != nil {
		return fmt.Errorf("image builder unavailable: %w", err)
	}
	o.log.WithField("iso", o.cfg.OverlayISO).Info("building overlay image")
	if err := o.builder.Build(ctx, o.cfg.VMName, o.cfg.OverlayISO); err != nil {
		return err
	}

	// Step 5: ensure the base installer image is in the pool.
	baseISO, err := o.ensureBaseImage(ctx)
	if err != nil {
		return err
	}

	// Step 6: upload the freshly built overlay. It was just deleted if it
	// was stale, so this never shadows an old build.
	o.log.WithField("iso", o.cfg.OverlayISO).Info("uploading overlay image")
	if err := o.ctl.UploadISO(ctx, o.cfg.StoragePool, o.cfg.OverlayISO); err != nil {
		return err
	}

	// Step 7: create the VM.
	o.log.Info("creating VM")
	vmid, err := o.ctl.CreateVM(ctx, o.cfg.VMName, o.cfg.Cores, o.cfg.MemoryMiB)
	if err != nil {
		return err
	}
	log := o.log.WithField("vmid", vmid)
	log.Info("VM created")

	// Step 8: attach resources in fixed order. CD-ROM attachment needs the
	// VM powered off; a just-created VM has never been started.
	slot, err := o.ctl.AddDisk(ctx, vmid, o.cfg.DiskSlot, o.cfg.DiskStorage, o.cfg.DiskSizeGB)
	if err != nil {
		return err
	}
	log.WithField("slot", slot).Info("disk attached")

	if err := o.ctl.AddNIC(ctx, vmid, o.cfg.NICSlot, o.cfg.Bridge); err != nil {
		return err
	}
	if err := o.ctl.AddCDROM(ctx, vmid, o.cfg.BaseCDROMSlot, o.cfg.StoragePool, baseISO); err != nil {
		return err
	}
	if err := o.ctl.AddCDROM(ctx, vmid, o.cfg.OverlayCDROMSlot, o.cfg.StoragePool, filepath.Base(o.cfg.OverlayISO)); err != nil {
		return err
	}

	// Step 9: deterministic boot order, disk then installer CD-ROM.
	if err := o.ctl.SetBootOrder(ctx, vmid, o.cfg.BootOrder()); err != nil {
		return err
	}

	// Step 10: boot the installer, wait for it to power the VM off, then
	// boot the installed system.
	log.Info("starting VM for unattended install")
	if err := o.ctl.Start(ctx, vmid); err != nil {
		return err
	}
	if err := o.waitForPowerOff(ctx, vmid); err != nil {
		return err
	}
	log.Info("install finished, starting installed system")
	if err := o.ctl.Start(ctx, vmid); err != nil {
		return err
	}

	log.Info("provisioning run complete")
	return nil
}

// Cleanup removes everything a previous run may have left behind: local
// build artifacts, the test VM, and the stale overlay ISO in the pool.
//
// When more than one VM carries the configured name the host is in an
// inconsistent state and Cleanup returns AmbiguousNameError without removing
// anything: deleting a guessed VMID could destroy an unrelated machine.
func (o *orchestrator) Cleanup(ctx context.Context) error {
	if err := o.removeArtifacts(o.cfg.LocalArtifacts()...); err != nil {
		return err
	}

	ids, err := o.ctl.ListVMIDs(ctx, o.cfg.VMName)
	if err != nil {
		return err
	}
	switch len(ids) {
	case 0:
		o.log.Debug("no existing VM to remove")
	case 1:
		o.log.WithField("vmid", ids[0]).Info("removing stale VM")
		if err := o.ctl.RemoveVM(ctx, ids[0]); err != nil {
			return err
		}
	default:
		return &AmbiguousNameError{Name: o.cfg.VMName, VMIDs: ids}
	}

	// ISO names are not content-addressed: a stale overlay with the same
	// name would silently shadow the new build.
	isos, err := o.ctl.ListISOs(ctx, o.cfg.StoragePool)
	if err != nil {
		return err
	}
	overlay := filepath.Base(o.cfg.OverlayISO)
	if slices.Contains(isos, overlay) {
		o.log.WithField("iso", overlay).Info("removing stale overlay image")
		if err := o.ctl.DeleteISO(ctx, o.cfg.StoragePool, overlay); err != nil {
			return err
		}
	}

	return nil
}

// ensureBaseImage makes sure the latest base installer image is present in
// the storage pool and returns its name. A present image is never fetched or
// re-uploaded.
//
// This is a read-check-fetch-upload sequence with no locking; two harness
// runs against the same pool can race and double-upload. The harness is
// single-instance by design.
func (o *orchestrator) ensureBaseImage(ctx context.Context) (string, error) {
	name, err := o.base.LatestName(ctx)
	if err != nil {
		return "", err
	}

	isos, err := o.ctl.ListISOs(ctx, o.cfg.StoragePool)
	if err != nil {
		return "", err
	}
	if slices.Contains(isos, name) {
		o.log.WithField("iso", name).Info("base image already present")
		return name, nil
	}

	dir := o.cfg.DownloadDir
	if dir == "" {
		// Per-run directory, removed once the image is uploaded.
		dir = filepath.Join(os.TempDir(), "crucible-"+o.runID)
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				o.log.WithError(err).Warn("failed to remove download directory")
			}
		}()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	o.log.WithField("iso", name).Info("base image missing, fetching")
	path, err := o.base.Fetch(ctx, name, dir)
	if err != nil {
		return "", err
	}

	if err := o.ctl.UploadISO(ctx, o.cfg.StoragePool, path); err != nil {
		return "", err
	}
	o.log.WithField("iso", name).Info("base image uploaded")
	return name, nil
}
