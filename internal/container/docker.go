// SPDX-License-Identifier: MPL-2.0

package container

// NewDockerEngine returns an Engine backed by the docker CLI. The version
// probe asks for the server version so a CLI without a reachable daemon
// counts as unavailable.
func NewDockerEngine(opts ...Option) Engine {
	return newCLIEngine(EngineDocker,
		[]string{"version", "--format", "{{.Server.Version}}"},
		[]string{"image", "inspect", "--format", "{{.Id}}"},
		opts...)
}
