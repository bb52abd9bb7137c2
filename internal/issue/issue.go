// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	MatrixFileNotFoundId Id = iota + 1
	MatrixFileInvalidId
	ConfigLoadFailedId
	ToolchainUnavailableId
	ContainerEngineNotFoundId
	NoTestsDiscoveredId
	ArtifactUploadFailedId
	StatusServerStartFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to look up the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	matrixFileNotFoundIssue = &Issue{
		id: MatrixFileNotFoundId,
		mdMsg: `
# No matrix file found!

We searched for a matrix file but could not find one.

## Search order:
1. ` + "`matrix.cue`" + `
2. ` + "`matrix.yaml`" + ` / ` + "`matrix.yml`" + `
3. ` + "`matrix.toml`" + `

## Things you can try:
- Scaffold one in the current directory:
~~~
$ matrun init
~~~

- Or point at a file somewhere else:
~~~
$ matrun run --file ci/matrix.cue
~~~`,
	}

	matrixFileInvalidIssue = &Issue{
		id: MatrixFileInvalidId,
		mdMsg: `
# The matrix file does not validate!

The file was found but its contents were rejected.

## Common problems:
- An axis with no values, or the same axis declared twice
- A command referencing ` + "`{axis.<name>}`" + ` for an axis that does not exist
- ` + "`perCommandTimeout`" + ` that is not a Go duration ("90s", "5m")
- ` + "`isolation.mode: \"container\"`" + ` without an image

## Things you can try:
- Validate and list every problem at once:
~~~
$ matrun validate
~~~

- Preview the cells the file expands to:
~~~
$ matrun expand
~~~

## Example of a valid matrix file:
~~~cue
axes: [
	{name: "version", values: ["3.12", "3.13"]},
]
commands: [
	"pip install -e .",
	"pytest -q",
]
failFast: true
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the matrun configuration file.

## Configuration file locations:
- Linux: ~/.config/matrun/config.cue
- macOS: ~/Library/Application Support/matrun/config.cue
- Windows: %APPDATA%\matrun\config.cue

## Things you can try:
- Check the configuration syntax
- Remove the config file to fall back to defaults:
~~~
$ rm ~/.config/matrun/config.cue
~~~

## Example configuration:
~~~cue
concurrency: 4
fail_fast:   true
container_engine: "docker"

ui: {
	color_scheme: "auto"
	verbose:      false
}
~~~`,
	}

	toolchainUnavailableIssue = &Issue{
		id: ToolchainUnavailableId,
		mdMsg: `
# Toolchain unavailable!

The matrix file names a toolchain this run depends on, and the probe
either failed or reported a version below the required minimum. The run
was not started.

## Things you can try:
- Run the probe yourself to see what the run saw:
~~~
$ python3 --version
~~~

- Install or upgrade the toolchain, or declare how matrun should:
~~~cue
toolchain: {
	probe:      "python3 --version"
	minVersion: "3.12.0"
	install:    "apt-get install -y python3"
}
~~~

- Lower ` + "`minVersion`" + ` if the older toolchain is actually fine`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

The matrix file asks for container isolation but neither Docker nor
Podman answered a version probe.

## Things you can try:
- Install Docker: https://docs.docker.com/get-docker/
- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `

- Check the daemon is actually running:
~~~
$ docker version
~~~

- Or drop to host isolation:
~~~cue
isolation: {mode: "host"}
~~~`,
		extLinks: []HttpLink{
			"https://docs.docker.com/get-docker/",
			"https://podman.io/docs/installation",
		},
	}

	noTestsDiscoveredIssue = &Issue{
		id: NoTestsDiscoveredId,
		mdMsg: `
# No tests discovered!

A ` + "`resultsGlob`" + ` is configured, every command exited zero, and yet the
glob matched no JUnit XML files (or the files it matched contain zero
test cases). That usually means the suite silently ran nothing, so the
cell is treated as failed rather than passed.

## Things you can try:
- Check the glob against what the commands actually write:
~~~cue
resultsGlob: "reports/*.xml"
~~~

- Make the test runner emit JUnit XML, e.g. for pytest:
~~~
$ pytest --junitxml=reports/results.xml
~~~

- Remove ` + "`resultsGlob`" + ` if exit codes alone should decide`,
	}

	artifactUploadFailedIssue = &Issue{
		id: ArtifactUploadFailedId,
		mdMsg: `
# Artifact upload failed!

The run itself finished and the local artifact tree is intact; only the
upload to the object store failed.

## Things you can try:
- Check the store settings:
~~~cue
store: {
	enabled:  true
	endpoint: "minio.internal:9000"
	bucket:   "matrun-runs"
}
~~~

- Check the credentials env vars named in the config are set
- Re-upload later from the saved report:
~~~
$ matrun report <output>/report.json --upload
~~~`,
	}

	statusServerStartFailedIssue = &Issue{
		id: StatusServerStartFailedId,
		mdMsg: `
# Status server failed to start!

The run can proceed without it; only the live scoreboard is gone.

## Common causes:
- The address is already in use
- The host key path is not writable

## Things you can try:
- Pick another address:
~~~cue
serve: {addr: "127.0.0.1:0"}
~~~

- Check for a stale listener:
~~~
$ ss -tlnp | grep 2222
~~~`,
	}

	issues = map[Id]*Issue{
		matrixFileNotFoundIssue.Id():       matrixFileNotFoundIssue,
		matrixFileInvalidIssue.Id():        matrixFileInvalidIssue,
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		toolchainUnavailableIssue.Id():     toolchainUnavailableIssue,
		containerEngineNotFoundIssue.Id():  containerEngineNotFoundIssue,
		noTestsDiscoveredIssue.Id():        noTestsDiscoveredIssue,
		artifactUploadFailedIssue.Id():     artifactUploadFailedIssue,
		statusServerStartFailedIssue.Id():  statusServerStartFailedIssue,
	}
)

// Values returns the catalog sorted by id so listings are stable.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int { return int(a.Id() - b.Id()) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}
