package harness

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AmbiguousNameError reports that more than one VM carries the configured
// name. The orchestrator refuses to guess which one to delete, since the
// wrong guess destroys an unrelated VM; the operator has to disambiguate on
// the host first.
type AmbiguousNameError struct {
	Name  string
	VMIDs []int
}

func (e *AmbiguousNameError) Error() string {
	ids := make([]string, len(e.VMIDs))
	for i, id := range e.VMIDs {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("multiple VMs named %q exist (VMIDs %s); remove the extras manually and re-run",
		e.Name, strings.Join(ids, ", "))
}

// InstallTimeoutError reports that the unattended installer did not power
// the VM off within the configured install timeout.
type InstallTimeoutError struct {
	VMID    int
	Timeout time.Duration
}

func (e *InstallTimeoutError) Error() string {
	return fmt.Sprintf("install on VM %d did not power off within %s", e.VMID, e.Timeout)
}
