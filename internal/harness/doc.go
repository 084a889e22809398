// Package harness provides the provisioning orchestrator: one linear
// workflow that takes a virtualization host from whatever a previous run
// left behind to a freshly installed test VM.
//
// The workflow is strictly sequential with no retries and no rollback:
//
//  1. Remove local build artifacts from a prior run
//  2. Remove the stale test VM, refusing to proceed when the name is
//     ambiguous (more than one VM carries it)
//  3. Delete the stale overlay ISO from the storage pool if present
//  4. Build the overlay image
//  5. Ensure the latest base image is in the storage pool
//  6. Upload the overlay image
//  7. Create the VM and attach disk, NIC, and both CD-ROM drives
//  8. Set the boot order to disk then installer CD-ROM
//  9. Start, wait for the unattended installer to power the VM off,
//     then start again into the installed system
//
// Error Handling:
//
// Every external-command failure is fatal and aborts the sequence where it
// happened; partially provisioned state is left for the next run's cleanup
// phase. Two failures are typed so the CLI can map them to distinct exit
// statuses: AmbiguousNameError and InstallTimeoutError. Power-state query
// failures during the install wait are the single retried error class, and
// only while Config.StrictStatusErrors is unset.
package harness
