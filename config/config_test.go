package config

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/user-none/flycast-inspect/probe"
)

func TestLoadProbeConfigMissingFileReturnsDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()

	got, err := LoadProbeConfig(fsys, "/does/not/exist.json")
	if err != nil {
		t.Fatalf("LoadProbeConfig returned error for missing file: %v", err)
	}

	want := DefaultProbeConfig()
	if *got != *want {
		t.Errorf("LoadProbeConfig(missing) = %+v, want %+v", got, want)
	}
}

func TestLoadProbeConfigCorruptFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/cfg/dcinspect.json"
	if err := afero.WriteFile(fsys, path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadProbeConfig(fsys, path); err == nil {
		t.Fatal("expected an error for corrupt JSON")
	}
}

func TestLoadProbeConfigPartialFileDefaultsMissingKeys(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/cfg/dcinspect.json"
	if err := afero.WriteFile(fsys, path, []byte(`{"processName":"x"}`), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadProbeConfig(fsys, path)
	if err != nil {
		t.Fatalf("LoadProbeConfig returned error: %v", err)
	}
	if got.ProcessName != "x" {
		t.Errorf("ProcessName = %q, want %q", got.ProcessName, "x")
	}
	defaults := DefaultProbeConfig()
	if got.ProbeTimeoutMS != defaults.ProbeTimeoutMS {
		t.Errorf("ProbeTimeoutMS = %d, want default %d", got.ProbeTimeoutMS, defaults.ProbeTimeoutMS)
	}
	if got.MaxHookRetries != defaults.MaxHookRetries {
		t.Errorf("MaxHookRetries = %d, want default %d", got.MaxHookRetries, defaults.MaxHookRetries)
	}
}

func TestSaveThenLoadProbeConfigRoundTrips(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/cfg/dcinspect.json"

	want := &ProbeConfig{ProcessName: "custom-emu", ProbeTimeoutMS: 500, MaxHookRetries: 3}
	if err := SaveProbeConfig(fsys, path, want); err != nil {
		t.Fatalf("SaveProbeConfig failed: %v", err)
	}

	if exists, _ := afero.Exists(fsys, path+".tmp"); exists {
		t.Error("temp file should have been renamed away, not left behind")
	}

	got, err := LoadProbeConfig(fsys, path)
	if err != nil {
		t.Fatalf("LoadProbeConfig failed: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestResolveNamesEnvOverrideWinsOverConfigFile(t *testing.T) {
	t.Setenv(probe.EnvProcessName, "env-emu")

	cfg := &ProbeConfig{ProcessName: "file-emu"}
	got := ResolveNames(cfg)
	if len(got) != 1 || got[0] != "env-emu" {
		t.Errorf("ResolveNames = %v, want [env-emu]", got)
	}
}

func TestResolveNamesConfigFileUsedWhenNoEnvOverride(t *testing.T) {
	t.Setenv(probe.EnvProcessName, "")

	cfg := &ProbeConfig{ProcessName: "file-emu"}
	got := ResolveNames(cfg)
	if len(got) != 1 || got[0] != "file-emu" {
		t.Errorf("ResolveNames = %v, want [file-emu]", got)
	}
}

func TestResolveNamesFallsBackToPlatformDefaults(t *testing.T) {
	t.Setenv(probe.EnvProcessName, "")

	got := ResolveNames(nil)
	want := probe.DefaultNames()
	if len(got) != len(want) {
		t.Fatalf("ResolveNames(nil) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ResolveNames(nil)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
