// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestCatalogIsComplete(t *testing.T) {
	ids := []Id{
		MatrixFileNotFoundId,
		MatrixFileInvalidId,
		ConfigLoadFailedId,
		ToolchainUnavailableId,
		ContainerEngineNotFoundId,
		NoTestsDiscoveredId,
		ArtifactUploadFailedId,
		StatusServerStartFailedId,
	}
	for _, id := range ids {
		iss := Get(id)
		if iss == nil {
			t.Fatalf("Get(%d) = nil", id)
		}
		if iss.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, iss.Id())
		}
		if strings.TrimSpace(string(iss.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", id)
		}
	}
}

func TestValuesSortedById(t *testing.T) {
	all := Values()
	if len(all) != len(issues) {
		t.Fatalf("Values() returned %d issues, catalog has %d", len(all), len(issues))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Id() >= all[i].Id() {
			t.Fatalf("Values() not sorted: %d before %d", all[i-1].Id(), all[i].Id())
		}
	}
}

func TestGetUnknownId(t *testing.T) {
	if iss := Get(Id(9999)); iss != nil {
		t.Errorf("Get(9999) = %v, want nil", iss)
	}
}

func TestRenderIncludesLinks(t *testing.T) {
	orig := render
	t.Cleanup(func() { render = orig })

	var captured string
	render = func(in string, _ string) (string, error) {
		captured = in
		return in, nil
	}

	iss := Get(ContainerEngineNotFoundId)
	out, err := iss.Render("dark")
	if err != nil {
		t.Fatalf("Render = %v", err)
	}
	if out == "" {
		t.Fatal("Render returned empty output")
	}
	if !strings.Contains(captured, "See also") {
		t.Errorf("rendered markdown lacks the links section:\n%s", captured)
	}
	if !strings.Contains(captured, "podman.io") {
		t.Errorf("rendered markdown lacks the podman link:\n%s", captured)
	}
}

func TestLinkAccessorsReturnCopies(t *testing.T) {
	iss := Get(ContainerEngineNotFoundId)
	links := iss.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links on the container engine issue")
	}
	links[0] = "https://mangled.example"
	if iss.ExtLinks()[0] == "https://mangled.example" {
		t.Error("ExtLinks exposed internal state")
	}
}
