// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"
)

func TestContainerEngineIsValid(t *testing.T) {
	t.Parallel()

	for _, engine := range []ContainerEngine{ContainerEngineDocker, ContainerEnginePodman} {
		if ok, errs := engine.IsValid(); !ok {
			t.Errorf("IsValid(%q) = %v", engine, errs)
		}
	}

	ok, errs := ContainerEngine("lxc").IsValid()
	if ok {
		t.Fatal("IsValid accepted lxc")
	}
	if !errors.Is(errs[0], ErrInvalidContainerEngine) {
		t.Errorf("error %v does not wrap ErrInvalidContainerEngine", errs[0])
	}
	var engineErr *InvalidContainerEngineError
	if !errors.As(errs[0], &engineErr) || engineErr.Value != "lxc" {
		t.Errorf("error %v is not InvalidContainerEngineError for lxc", errs[0])
	}
}

func TestColorSchemeIsValid(t *testing.T) {
	t.Parallel()

	for _, cs := range []ColorScheme{ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight} {
		if ok, errs := cs.IsValid(); !ok {
			t.Errorf("IsValid(%q) = %v", cs, errs)
		}
	}
	if ok, errs := ColorScheme("sepia").IsValid(); ok || !errors.Is(errs[0], ErrInvalidColorScheme) {
		t.Errorf("IsValid(sepia) = %v, %v", ok, errs)
	}
}

func TestConfigDurations(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if d, err := cfg.GracePeriodDuration(); err != nil || d != 5*time.Second {
		t.Errorf("GracePeriodDuration = %v, %v", d, err)
	}
	if d, err := cfg.PerCommandTimeoutDuration(); err != nil || d != 0 {
		t.Errorf("PerCommandTimeoutDuration (unset) = %v, %v", d, err)
	}

	cfg.PerCommandTimeout = "90 seconds"
	if _, err := cfg.PerCommandTimeoutDuration(); !errors.Is(err, ErrInvalidConfigDuration) {
		t.Errorf("PerCommandTimeoutDuration = %v, want ErrInvalidConfigDuration", err)
	}
}

func TestConfigIsValid(t *testing.T) {
	t.Parallel()

	if ok, errs := DefaultConfig().IsValid(); !ok {
		t.Fatalf("DefaultConfig().IsValid() = %v", errs)
	}

	broken := DefaultConfig()
	broken.ContainerEngine = "lxc"
	broken.Concurrency = 0
	broken.GracePeriod = "soon"

	ok, errs := broken.IsValid()
	if ok {
		t.Fatal("IsValid accepted a broken config")
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("error %v is not InvalidConfigError", errs[0])
	}
	if len(cfgErr.FieldErrors) != 3 {
		t.Errorf("FieldErrors = %d (%v), want 3", len(cfgErr.FieldErrors), cfgErr.FieldErrors)
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Error("InvalidConfigError does not wrap ErrInvalidConfig")
	}
}
