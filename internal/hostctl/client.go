package hostctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Client provides typed operations over the host-control CLI.
type Client struct {
	runner Runner
}

// NewClient creates a Client on top of the given Runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// ListVMIDs returns the numeric identifiers of every VM with the given name.
// An empty result means no VM carries the name; more than one entry means
// the host is in an ambiguous state the caller must deal with.
func (c *Client) ListVMIDs(ctx context.Context, name string) ([]int, error) {
	out, err := c.runner.Run(ctx, "list", "--name", name)
	if err != nil {
		return nil, fmt.Errorf("failed to list VMs named %q: %w", name, err)
	}

	ids, err := parseIDList(out)
	if err != nil {
		return nil, fmt.Errorf("unexpected VM list output for %q: %w", name, err)
	}
	return ids, nil
}

// RemoveVM deletes the VM with the given identifier from the host.
func (c *Client) RemoveVM(ctx context.Context, vmid int) error {
	if _, err := c.runner.Run(ctx, "remove", strconv.Itoa(vmid)); err != nil {
		return fmt.Errorf("failed to remove VM %d: %w", vmid, err)
	}
	return nil
}

// PowerState queries the power state of a VM. On a query failure it returns
// PowerUnknown together with the error; the caller decides whether unknown
// is retryable.
func (c *Client) PowerState(ctx context.Context, vmid int) (PowerState, error) {
	out, err := c.runner.Run(ctx, "status", strconv.Itoa(vmid), "--onoff")
	if err != nil {
		return PowerUnknown, fmt.Errorf("failed to query power state of VM %d: %w", vmid, err)
	}
	return parsePowerState(strings.TrimSpace(out)), nil
}

// ListISOs returns the names of all ISO images in a storage pool.
func (c *Client) ListISOs(ctx context.Context, storage string) ([]string, error) {
	out, err := c.runner.Run(ctx, "iso", "list", "--storage", storage)
	if err != nil {
		return nil, fmt.Errorf("failed to list ISOs in storage %q: %w", storage, err)
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// DeleteISO removes an ISO image from a storage pool.
func (c *Client) DeleteISO(ctx context.Context, storage, name string) error {
	if _, err := c.runner.Run(ctx, "iso", "delete", "--storage", storage, "--name", name); err != nil {
		return fmt.Errorf("failed to delete ISO %q from storage %q: %w", name, storage, err)
	}
	return nil
}

// UploadISO uploads a local ISO file into a storage pool. The host stores it
// under the file's base name.
func (c *Client) UploadISO(ctx context.Context, storage, file string) error {
	if _, err := c.runner.Run(ctx, "iso", "upload", "--storage", storage, "--file", file); err != nil {
		return fmt.Errorf("failed to upload ISO %q to storage %q: %w", file, storage, err)
	}
	return nil
}

// CreateVM creates a stopped VM and returns the host-assigned identifier.
// Empty output means creation silently failed at the tool layer, which is
// reported as an error rather than identifier zero.
func (c *Client) CreateVM(ctx context.Context, name string, cores, memoryMiB int) (int, error) {
	out, err := c.runner.Run(ctx, "create", name,
		"--cores", strconv.Itoa(cores),
		"--memory", strconv.Itoa(memoryMiB))
	if err != nil {
		return 0, fmt.Errorf("failed to create VM %q: %w", name, err)
	}

	token := firstToken(out)
	if token == "" {
		return 0, fmt.Errorf("VM creation for %q returned no identifier", name)
	}

	vmid, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("VM creation for %q returned non-numeric identifier %q", name, token)
	}
	return vmid, nil
}

// AddDisk attaches a disk to a stopped VM and returns the slot name the host
// reports. Empty output means the attachment silently failed.
func (c *Client) AddDisk(ctx context.Context, vmid int, slot, storage string, sizeGB int) (string, error) {
	out, err := c.runner.Run(ctx, "disk", "add", strconv.Itoa(vmid),
		"--slot", slot,
		"--storage", storage,
		"--size", strconv.Itoa(sizeGB))
	if err != nil {
		return "", fmt.Errorf("failed to add disk to VM %d: %w", vmid, err)
	}

	attached := firstToken(out)
	if attached == "" {
		return "", fmt.Errorf("disk attachment on VM %d returned no slot name", vmid)
	}
	return attached, nil
}

// AddNIC attaches a network interface on the given bridge.
func (c *Client) AddNIC(ctx context.Context, vmid int, slot, bridge string) error {
	if _, err := c.runner.Run(ctx, "nic", "add", strconv.Itoa(vmid),
		"--slot", slot,
		"--bridge", bridge); err != nil {
		return fmt.Errorf("failed to add NIC to VM %d: %w", vmid, err)
	}
	return nil
}

// AddCDROM attaches an ISO from the pool as a CD-ROM drive. The host
// requires the VM to be powered off for this, which holds trivially for a
// freshly created VM that was never started.
func (c *Client) AddCDROM(ctx context.Context, vmid int, slot, storage, iso string) error {
	if _, err := c.runner.Run(ctx, "cdrom", "add", strconv.Itoa(vmid),
		"--slot", slot,
		"--storage", storage,
		"--iso", iso); err != nil {
		return fmt.Errorf("failed to add CD-ROM %q to VM %d: %w", iso, vmid, err)
	}
	return nil
}

// SetBootOrder sets the VM's boot device order.
func (c *Client) SetBootOrder(ctx context.Context, vmid int, order string) error {
	if _, err := c.runner.Run(ctx, "options", strconv.Itoa(vmid), "--boot", order); err != nil {
		return fmt.Errorf("failed to set boot order on VM %d: %w", vmid, err)
	}
	return nil
}

// Start powers on the VM.
func (c *Client) Start(ctx context.Context, vmid int) error {
	if _, err := c.runner.Run(ctx, "start", strconv.Itoa(vmid)); err != nil {
		return fmt.Errorf("failed to start VM %d: %w", vmid, err)
	}
	return nil
}

// parseIDList parses newline-delimited numeric identifiers. Blank lines are
// skipped; anything non-numeric is an error, since guessing at a mangled
// identifier list risks acting on the wrong VM.
func parseIDList(out string) ([]int, error) {
	var ids []int
	for _, line := range strings.Split(out, "\n") {
		token := strings.TrimSpace(line)
		if token == "" {
			continue
		}
		id, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("non-numeric identifier %q", token)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// firstToken returns the first whitespace-delimited token of the output, or
// "" when the output is blank.
func firstToken(out string) string {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
