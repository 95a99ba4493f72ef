package admission

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(LoadOptions{Args: []string{}, Environ: []string{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != ":8080" || !cfg.EnableHTTP {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Registry.Shards != 16 || cfg.Registry.IdleWindow != 24*time.Hour {
		t.Fatalf("unexpected registry defaults: %#v", cfg.Registry)
	}
	if cfg.ViolationRetention != 10000 || cfg.SweepInterval != time.Minute {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
listen_addr: ":9090"
enable_auth: true
admin_token: "secret"
sweep_interval_ms: 5000
endpoint_costs:
  search: 3
tiers:
  free:
    per_minute: 10
    cost_budget_per_minute: 20
`)
	cfg, err := LoadConfig(LoadOptions{ConfigPath: path, Args: []string{}, Environ: []string{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != ":9090" || !cfg.EnableAuth || cfg.AdminToken != "secret" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if cfg.SweepInterval != 5*time.Second {
		t.Fatalf("sweep interval = %v, want 5s", cfg.SweepInterval)
	}
	if cfg.EndpointCosts["search"] != 3 {
		t.Fatalf("unexpected endpoint costs: %#v", cfg.EndpointCosts)
	}
	free, ok := cfg.TierOverrides[TierFree]
	if !ok {
		t.Fatalf("expected free tier override")
	}
	if free.PerMinute != 10 || free.CostBudgetPerMinute != 20 {
		t.Fatalf("unexpected tier override: %#v", free)
	}
	// Unset fields fall back to the built-in profile.
	if free.BurstCapacity != 5 {
		t.Fatalf("burst capacity = %v, want built-in 5", free.BurstCapacity)
	}
}

func TestLoadConfig_RejectsUnknownFileKeys(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "listen_adr: \":9090\"\n")
	if _, err := LoadConfig(LoadOptions{ConfigPath: path, Args: []string{}, Environ: []string{}}); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadConfig_RejectsUnknownTier(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "tiers:\n  gold:\n    per_minute: 10\n")
	if _, err := LoadConfig(LoadOptions{ConfigPath: path, Args: []string{}, Environ: []string{}}); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "listen_addr: \":9090\"\n")
	cfg, err := LoadConfig(LoadOptions{
		ConfigPath: path,
		Args:       []string{},
		Environ:    []string{"ADMISSION_HTTP_ADDR=:7070", "ADMISSION_VIOLATION_RETENTION=500"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != ":7070" {
		t.Fatalf("listen addr = %q, want env value", cfg.HTTPListenAddr)
	}
	if cfg.ViolationRetention != 500 {
		t.Fatalf("violation retention = %d, want 500", cfg.ViolationRetention)
	}
}

func TestLoadConfig_RejectsMalformedEnv(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(LoadOptions{
		Args:    []string{},
		Environ: []string{"ADMISSION_ENABLE_AUTH=maybe"},
	})
	if CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadConfig_FlagsOverrideEverything(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "listen_addr: \":9090\"\n")
	cfg, err := LoadConfig(LoadOptions{
		ConfigPath: path,
		Args:       []string{"-http_addr", ":6060", "-enable_auth", "-admin_token", "flagtoken"},
		Environ:    []string{"ADMISSION_HTTP_ADDR=:7070"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != ":6060" {
		t.Fatalf("listen addr = %q, want flag value", cfg.HTTPListenAddr)
	}
	if !cfg.EnableAuth || cfg.AdminToken != "flagtoken" {
		t.Fatalf("unexpected auth config: %#v", cfg)
	}
}

func TestLoadConfig_ConfigFlagSelectsFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "listen_addr: \":9090\"\n")
	cfg, err := LoadConfig(LoadOptions{
		Args:    []string{"-config", path},
		Environ: []string{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != ":9090" {
		t.Fatalf("listen addr = %q, want file value", cfg.HTTPListenAddr)
	}
}

func TestLoadConfig_MissingFileFails(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(LoadOptions{ConfigPath: "/does/not/exist.yaml", Args: []string{}, Environ: []string{}}); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
