package hostctl

// PowerState is the parsed power state of a VM.
//
// The control tool's status subcommand prints exactly "off" when the VM is
// powered off and any other token otherwise. Parsing happens here once so
// the rest of the harness never matches on raw strings.
type PowerState int

const (
	// PowerUnknown means the state could not be determined, either because
	// the status query failed or because the tool printed nothing.
	PowerUnknown PowerState = iota

	// PowerOn means the VM is running.
	PowerOn

	// PowerOff means the VM is powered off.
	PowerOff
)

// String returns a human-readable state name for logging.
func (s PowerState) String() string {
	switch s {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// parsePowerState maps the status subcommand's output token to a PowerState.
// Empty output is PowerUnknown rather than PowerOn: a tool that printed
// nothing did not report a state.
func parsePowerState(token string) PowerState {
	switch token {
	case "":
		return PowerUnknown
	case "off":
		return PowerOff
	default:
		return PowerOn
	}
}
