package harness

import (
	"context"

	"github.com/jbweber/crucible/internal/hostctl"
)

// controlPlane defines the host-control operations the orchestrator needs.
//
// In production, this is satisfied by *hostctl.Client.
// In tests, this is satisfied by mock implementations.
type controlPlane interface {
	// ListVMIDs returns the identifiers of every VM with the given name
	ListVMIDs(ctx context.Context, name string) ([]int, error)

	// RemoveVM deletes a VM by identifier
	RemoveVM(ctx context.Context, vmid int) error

	// PowerState queries the power state of a VM
	PowerState(ctx context.Context, vmid int) (hostctl.PowerState, error)

	// ListISOs returns the ISO names in a storage pool
	ListISOs(ctx context.Context, storage string) ([]string, error)

	// DeleteISO removes an ISO from a storage pool
	DeleteISO(ctx context.Context, storage, name string) error

	// UploadISO uploads a local ISO file into a storage pool
	UploadISO(ctx context.Context, storage, file string) error

	// CreateVM creates a stopped VM and returns its identifier
	CreateVM(ctx context.Context, name string, cores, memoryMiB int) (int, error)

	// AddDisk attaches a disk and returns the reported slot name
	AddDisk(ctx context.Context, vmid int, slot, storage string, sizeGB int) (string, error)

	// AddNIC attaches a network interface on a bridge
	AddNIC(ctx context.Context, vmid int, slot, bridge string) error

	// AddCDROM attaches a pool ISO as a CD-ROM drive
	AddCDROM(ctx context.Context, vmid int, slot, storage, iso string) error

	// SetBootOrder sets the VM boot device order
	SetBootOrder(ctx context.Context, vmid int, order string) error

	// Start powers on a VM
	Start(ctx context.Context, vmid int) error
}

// imageBuilder defines the overlay image-builder operations.
//
// In production, this is satisfied by *build.Builder.
type imageBuilder interface {
	// Preflight verifies the builder executable can be invoked
	Preflight() error

	// Build produces the overlay ISO for the given hostname
	Build(ctx context.Context, hostname, isoPath string) error
}

// baseImageSource defines the base-image resolver operations.
//
// In production, this is satisfied by *build.Resolver.
type baseImageSource interface {
	// LatestName returns the newest base-image filename
	LatestName(ctx context.Context) (string, error)

	// Fetch downloads the named image into dir and returns the local path
	Fetch(ctx context.Context, name, dir string) (string, error)
}
