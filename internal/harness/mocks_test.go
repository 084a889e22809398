package harness

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/crucible/internal/config"
	"github.com/jbweber/crucible/internal/hostctl"
)

// mockControlPlane is a mock implementation of the controlPlane interface.
// Behavior is configurable per method; every call is tracked, plus a flat
// ordered call log for sequence assertions.
type mockControlPlane struct {
	// Configurable behavior
	listVMIDsFunc  func(name string) ([]int, error)
	powerStateFunc func(vmid int) (hostctl.PowerState, error)
	createVMFunc   func(name string, cores, memoryMiB int) (int, error)
	addDiskFunc    func(vmid int, slot, storage string, sizeGB int) (string, error)
	listISOsFunc   func(storage string) ([]string, error)

	removeVMErr     error
	deleteISOErr    error
	uploadISOErr    error
	addNICErr       error
	addCDROMErr     error
	setBootOrderErr error
	startErr        error

	// Call tracking
	callLog        []string
	removeVMCalls  []int
	deleteISOCalls []string
	uploadISOCalls []string
	addCDROMCalls  []cdromCall
	bootOrderCalls []string
	startCalls     []int
}

type cdromCall struct {
	vmid int
	slot string
	iso  string
}

// newMockControlPlane creates a mock with default happy-path behavior:
// no existing VM, empty pool, creation returns VMID 105, the VM reports
// powered off on the first poll.
func newMockControlPlane() *mockControlPlane {
	m := &mockControlPlane{}
	m.listVMIDsFunc = func(string) ([]int, error) { return nil, nil }
	m.listISOsFunc = func(string) ([]string, error) { return nil, nil }
	m.createVMFunc = func(string, int, int) (int, error) { return 105, nil }
	m.addDiskFunc = func(_ int, slot, _ string, _ int) (string, error) { return slot, nil }
	m.powerStateFunc = func(int) (hostctl.PowerState, error) { return hostctl.PowerOff, nil }
	return m
}

func (m *mockControlPlane) ListVMIDs(_ context.Context, name string) ([]int, error) {
	m.callLog = append(m.callLog, "ListVMIDs")
	return m.listVMIDsFunc(name)
}

func (m *mockControlPlane) RemoveVM(_ context.Context, vmid int) error {
	m.callLog = append(m.callLog, "RemoveVM")
	m.removeVMCalls = append(m.removeVMCalls, vmid)
	return m.removeVMErr
}

func (m *mockControlPlane) PowerState(_ context.Context, vmid int) (hostctl.PowerState, error) {
	m.callLog = append(m.callLog, "PowerState")
	return m.powerStateFunc(vmid)
}

func (m *mockControlPlane) ListISOs(_ context.Context, storage string) ([]string, error) {
	m.callLog = append(m.callLog, "ListISOs")
	return m.listISOsFunc(storage)
}

func (m *mockControlPlane) DeleteISO(_ context.Context, _, name string) error {
	m.callLog = append(m.callLog, "DeleteISO")
	m.deleteISOCalls = append(m.deleteISOCalls, name)
	return m.deleteISOErr
}

func (m *mockControlPlane) UploadISO(_ context.Context, _, file string) error {
	m.callLog = append(m.callLog, "UploadISO")
	m.uploadISOCalls = append(m.uploadISOCalls, file)
	return m.uploadISOErr
}

func (m *mockControlPlane) CreateVM(_ context.Context, name string, cores, memoryMiB int) (int, error) {
	m.callLog = append(m.callLog, "CreateVM")
	return m.createVMFunc(name, cores, memoryMiB)
}

func (m *mockControlPlane) AddDisk(_ context.Context, vmid int, slot, storage string, sizeGB int) (string, error) {
	m.callLog = append(m.callLog, "AddDisk")
	return m.addDiskFunc(vmid, slot, storage, sizeGB)
}

func (m *mockControlPlane) AddNIC(_ context.Context, _ int, _, _ string) error {
	m.callLog = append(m.callLog, "AddNIC")
	return m.addNICErr
}

func (m *mockControlPlane) AddCDROM(_ context.Context, vmid int, slot, _, iso string) error {
	m.callLog = append(m.callLog, "AddCDROM")
	m.addCDROMCalls = append(m.addCDROMCalls, cdromCall{vmid: vmid, slot: slot, iso: iso})
	return m.addCDROMErr
}

func (m *mockControlPlane) SetBootOrder(_ context.Context, _ int, order string) error {
	m.callLog = append(m.callLog, "SetBootOrder")
	m.bootOrderCalls = append(m.bootOrderCalls, order)
	return m.setBootOrderErr
}

func (m *mockControlPlane) Start(_ context.Context, vmid int) error {
	m.callLog = append(m.callLog, "Start")
	m.startCalls = append(m.startCalls, vmid)
	return m.startErr
}

// mockBuilder is a mock implementation of the imageBuilder interface.
type mockBuilder struct {
	preflightErr error
	buildErr     error

	buildCalls []buildCall
}

type buildCall struct {
	hostname string
	iso      string
}

func (m *mockBuilder) Preflight() error {
	return m.preflightErr
}

func (m *mockBuilder) Build(_ context.Context, hostname, isoPath string) error {
	m.buildCalls = append(m.buildCalls, buildCall{hostname: hostname, iso: isoPath})
	return m.buildErr
}

// mockBaseSource is a mock implementation of the baseImageSource interface.
type mockBaseSource struct {
	latestName    string
	latestNameErr error
	fetchErr      error

	latestNameCalls int
	fetchCalls      []string
}

func (m *mockBaseSource) LatestName(_ context.Context) (string, error) {
	m.latestNameCalls++
	if m.latestNameErr != nil {
		return "", m.latestNameErr
	}
	return m.latestName, nil
}

func (m *mockBaseSource) Fetch(_ context.Context, name, dir string) (string, error) {
	m.fetchCalls = append(m.fetchCalls, name)
	if m.fetchErr != nil {
		return "", m.fetchErr
	}
	return filepath.Join(dir, name), nil
}

// testConfig creates a minimal valid harness config.
func testConfig() *config.Config {
	cfg := &config.Config{
		VMName:       "test-vm",
		BuilderTool:  "./build-overlay",
		ResolverTool: "./base-image",
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid test config: %v", err))
	}
	return cfg
}

// newTestOrchestrator wires mocks into an orchestrator with a silent logger,
// a sleep that only records durations, and artifact removal stubbed out.
func newTestOrchestrator(cfg *config.Config, ctl *mockControlPlane, b *mockBuilder, base *mockBaseSource) (*orchestrator, *testHooks) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hooks := &testHooks{}
	o := newOrchestrator(cfg, ctl, b, base, logger)
	o.sleep = func(_ context.Context, d time.Duration) error {
		hooks.sleeps = append(hooks.sleeps, d)
		return nil
	}
	o.removeArtifacts = func(paths ...string) error {
		hooks.removedArtifacts = append(hooks.removedArtifacts, paths...)
		return hooks.removeArtifactsErr
	}
	return o, hooks
}

type testHooks struct {
	sleeps             []time.Duration
	removedArtifacts   []string
	removeArtifactsErr error
}
