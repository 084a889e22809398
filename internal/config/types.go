// Package config defines the harness run configuration.
//
// The configuration is loaded from a YAML file once at startup, normalized,
// validated, and then treated as immutable: it is passed by pointer into the
// orchestrator and never modified after LoadFromFile returns.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written in YAML as "5s" or "30m".
type Duration time.Duration

// UnmarshalYAML parses a duration string like "5s", "10m" or "1h30m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back in time.Duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// NewDuration returns a pointer to a Duration, for the optional fields that
// distinguish unset from an explicit zero.
func NewDuration(d time.Duration) *Duration {
	wrapped := Duration(d)
	return &wrapped
}

// Config is the complete configuration for a harness run.
type Config struct {
	// VMName is the name of the throwaway test VM on the host.
	VMName string `yaml:"vm_name"`

	// Cores is the number of virtual CPUs for the test VM.
	Cores int `yaml:"cores,omitempty"`

	// MemoryMiB is the memory allocation for the test VM in MiB.
	MemoryMiB int `yaml:"memory_mib,omitempty"`

	// StoragePool is the host storage pool holding uploadable ISO images.
	StoragePool string `yaml:"storage_pool,omitempty"`

	// Bridge is the host bridge the VM's NIC attaches to.
	Bridge string `yaml:"bridge,omitempty"`

	// DiskSlot is the slot the boot disk is attached at (e.g. "scsi0").
	DiskSlot string `yaml:"disk_slot,omitempty"`

	// DiskStorage is the host storage backing the boot disk.
	DiskStorage string `yaml:"disk_storage,omitempty"`

	// DiskSizeGB is the boot disk size in GB.
	DiskSizeGB int `yaml:"disk_size_gb,omitempty"`

	// NICSlot is the slot the network interface is attached at.
	NICSlot string `yaml:"nic_slot,omitempty"`

	// BaseCDROMSlot is the CD-ROM slot for the base installer image.
	// It is also the CD-ROM entry in the boot order, so the installer
	// runs ahead of whatever is on the (fresh, empty) disk.
	BaseCDROMSlot string `yaml:"base_cdrom_slot,omitempty"`

	// OverlayCDROMSlot is the CD-ROM slot for the built overlay image.
	OverlayCDROMSlot string `yaml:"overlay_cdrom_slot,omitempty"`

	// ControlTool is the host-control CLI executable.
	ControlTool string `yaml:"control_tool,omitempty"`

	// BuilderTool is the image-builder executable producing the overlay ISO.
	BuilderTool string `yaml:"builder_tool"`

	// ResolverTool is the base-image resolver executable.
	ResolverTool string `yaml:"resolver_tool"`

	// OverlayISO is the local filename the builder writes the overlay
	// image to, and the name it is uploaded under.
	OverlayISO string `yaml:"overlay_iso,omitempty"`

	// BuildArtifacts are additional local files the builder leaves behind
	// that must be removed before each run.
	BuildArtifacts []string `yaml:"build_artifacts,omitempty"`

	// DownloadDir is where the resolver fetches the base image to when it
	// is missing from the storage pool. Empty means a per-run temporary
	// directory that is removed after upload.
	DownloadDir string `yaml:"download_dir,omitempty"`

	// SettleDelay is how long to wait after the first boot before polling
	// power state, giving the installer time to actually start.
	// Pointer to distinguish unset (defaulted) from an explicit zero.
	SettleDelay *Duration `yaml:"settle_delay,omitempty"`

	// PollInterval is the delay between power-state polls while waiting
	// for the unattended installer to power the VM off.
	PollInterval Duration `yaml:"poll_interval,omitempty"`

	// InstallTimeout bounds the power-off wait. An explicit zero disables
	// the bound and polls forever, which matches the historical behavior
	// but leaves a hung installer blocking the run with no feedback.
	// Pointer to distinguish unset (defaulted) from an explicit zero.
	InstallTimeout *Duration `yaml:"install_timeout,omitempty"`

	// StrictStatusErrors makes a failed power-state query abort the run.
	// When false (the default) a failed query is treated as an unknown
	// state and retried on the next poll.
	StrictStatusErrors bool `yaml:"strict_status_errors,omitempty"`
}

// Default values applied by Normalize.
const (
	DefaultControlTool    = "vmctl"
	DefaultStoragePool    = "local"
	DefaultBridge         = "vmbr1"
	DefaultCores          = 1
	DefaultMemoryMiB      = 2048
	DefaultDiskSlot       = "scsi0"
	DefaultDiskStorage    = "local-lvm"
	DefaultDiskSizeGB     = 16
	DefaultNICSlot        = "net0"
	DefaultBaseCDROM      = "ide0"
	DefaultOverlayCDROM   = "ide2"
	DefaultSettleDelay    = 10 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultInstallTimeout = 30 * time.Minute
)

// Normalize trims and lowercases the VM name and fills in defaults for
// fields that may be omitted. It is called by LoadFromFile before Validate.
func (c *Config) Normalize() {
	c.VMName = strings.ToLower(strings.TrimSpace(c.VMName))

	if c.ControlTool == "" {
		c.ControlTool = DefaultControlTool
	}
	if c.StoragePool == "" {
		c.StoragePool = DefaultStoragePool
	}
	if c.Bridge == "" {
		c.Bridge = DefaultBridge
	}
	if c.Cores == 0 {
		c.Cores = DefaultCores
	}
	if c.MemoryMiB == 0 {
		c.MemoryMiB = DefaultMemoryMiB
	}
	if c.DiskSlot == "" {
		c.DiskSlot = DefaultDiskSlot
	}
	if c.DiskStorage == "" {
		c.DiskStorage = DefaultDiskStorage
	}
	if c.DiskSizeGB == 0 {
		c.DiskSizeGB = DefaultDiskSizeGB
	}
	if c.NICSlot == "" {
		c.NICSlot = DefaultNICSlot
	}
	if c.BaseCDROMSlot == "" {
		c.BaseCDROMSlot = DefaultBaseCDROM
	}
	if c.OverlayCDROMSlot == "" {
		c.OverlayCDROMSlot = DefaultOverlayCDROM
	}
	if c.OverlayISO == "" && c.VMName != "" {
		c.OverlayISO = c.VMName + "-overlay.iso"
	}
	if c.SettleDelay == nil {
		c.SettleDelay = NewDuration(DefaultSettleDelay)
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.InstallTimeout == nil {
		c.InstallTimeout = NewDuration(DefaultInstallTimeout)
	}
}

// namePattern matches the VM name requirements shared with the host:
// start and end alphanumeric, hyphens and underscores allowed inside.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// Validate checks the configuration for structural errors. It does not
// validate host-side resources (pools, bridges); those surface as control
// tool failures at run time.
func (c *Config) Validate() error {
	if c.VMName == "" {
		return fmt.Errorf("vm_name is required")
	}
	if !namePattern.MatchString(c.VMName) {
		return fmt.Errorf("vm_name must start and end with alphanumeric characters and contain only alphanumeric, hyphens, or underscores, got %q", c.VMName)
	}
	if c.BuilderTool == "" {
		return fmt.Errorf("builder_tool is required")
	}
	if c.ResolverTool == "" {
		return fmt.Errorf("resolver_tool is required")
	}
	if c.Cores <= 0 {
		return fmt.Errorf("cores must be > 0, got %d", c.Cores)
	}
	if c.MemoryMiB <= 0 {
		return fmt.Errorf("memory_mib must be > 0, got %d", c.MemoryMiB)
	}
	if c.DiskSizeGB <= 0 {
		return fmt.Errorf("disk_size_gb must be > 0, got %d", c.DiskSizeGB)
	}
	if c.BaseCDROMSlot == c.OverlayCDROMSlot {
		return fmt.Errorf("base_cdrom_slot and overlay_cdrom_slot must differ, both are %q", c.BaseCDROMSlot)
	}
	if c.DiskSlot == c.BaseCDROMSlot || c.DiskSlot == c.OverlayCDROMSlot {
		return fmt.Errorf("disk_slot %q conflicts with a CD-ROM slot", c.DiskSlot)
	}
	if !strings.HasSuffix(c.OverlayISO, ".iso") {
		return fmt.Errorf("overlay_iso must end in .iso, got %q", c.OverlayISO)
	}
	if c.PollInterval.Std() <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %s", c.PollInterval.Std())
	}
	if c.SettleDelay != nil && c.SettleDelay.Std() < 0 {
		return fmt.Errorf("settle_delay must be >= 0, got %s", c.SettleDelay.Std())
	}
	if c.InstallTimeout != nil && c.InstallTimeout.Std() < 0 {
		return fmt.Errorf("install_timeout must be >= 0, got %s", c.InstallTimeout.Std())
	}
	return nil
}

// BootOrder returns the boot order argument for the control tool:
// disk first, then the base installer CD-ROM. Irrelevant on a fresh empty
// disk, but it keeps the host's boot menu deterministic.
func (c *Config) BootOrder() string {
	return fmt.Sprintf("order=%s;%s", c.DiskSlot, c.BaseCDROMSlot)
}

// LocalArtifacts returns every local file a run may leave behind: the
// overlay ISO plus any extra builder artifacts.
func (c *Config) LocalArtifacts() []string {
	artifacts := make([]string, 0, len(c.BuildArtifacts)+1)
	artifacts = append(artifacts, c.OverlayISO)
	artifacts = append(artifacts, c.BuildArtifacts...)
	return artifacts
}

// LoadFromFile loads a harness configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromYAML(data)
}

// LoadFromYAML loads a harness configuration from YAML bytes, normalizing
// user input before validation.
func LoadFromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
