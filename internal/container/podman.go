// SPDX-License-Identifier: MPL-2.0

package container

import (
	"os"
	"strings"
)

// selinuxEnforceFile is the kernel interface reporting SELinux enforcement.
const selinuxEnforceFile = "/sys/fs/selinux/enforce"

// NewPodmanEngine returns an Engine backed by the podman CLI. Bind mounts
// get the shared SELinux relabel flag appended when the host is enforcing,
// matching podman's expectations on Fedora-family hosts.
func NewPodmanEngine(opts ...Option) Engine {
	base := []Option{WithMountFormatter(selinuxMountFormatter(selinuxEnforcing))}
	return newCLIEngine(EnginePodman,
		[]string{"version", "--format", "{{.Version}}"},
		[]string{"image", "exists"},
		append(base, opts...)...)
}

// selinuxMountFormatter renders mounts in -v syntax with the "z" relabel
// flag appended while enforcing() reports true.
func selinuxMountFormatter(enforcing func() bool) MountFormatter {
	return func(m Mount) string {
		s := m.flag()
		if !enforcing() {
			return s
		}
		if m.ReadOnly {
			return s + ",z"
		}
		return s + ":z"
	}
}

// selinuxEnforcing reports whether the kernel is enforcing SELinux.
func selinuxEnforcing() bool {
	b, err := os.ReadFile(selinuxEnforceFile)
	return err == nil && strings.TrimSpace(string(b)) == "1"
}
