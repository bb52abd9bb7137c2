// SPDX-License-Identifier: MPL-2.0

// Package provision creates and destroys the isolated execution context for
// one matrix cell.
//
// Setup gives a cell its own working directory, derives its environment
// variables from the cell's axis values, optionally copies the source tree
// in, and runs the configured dependency installer with captured output.
// Any failure along the way is reported as a *ProvisioningError carrying the
// installer output, and partial state is released before Setup returns.
//
// Teardown releases everything Setup created and is guarded to run its
// release logic exactly once per context, so the scheduler can defer it
// unconditionally without double-release on the provisioning-failure path.
//
// HostProvisioner is the only implementation: every cell gets a directory
// under the run root. Container isolation changes where commands run, not
// where the cell's workdir lives, so the container runner bind-mounts these
// same directories.
package provision
