// SPDX-License-Identifier: MPL-2.0

// Package container runs matrix cell commands inside container images by
// shelling out to an engine CLI (docker or podman). The two engines share
// one implementation parameterized by probe commands and mount syntax; the
// Runner type adapts an engine to the execute.Runner interface so a cell
// can be isolated in a container without the scheduler noticing.
package container
