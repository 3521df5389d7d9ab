package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsWhenEmpty(t *testing.T) {
	cfg := EmptyTuningConfig()
	p := cfg.Params()

	if p.MaxPoints != 50 || p.MaxAbsX != 6.0 || p.MinY != 1.0 || p.MaxY != 8.0 {
		t.Errorf("unexpected bounds defaults: %+v", p)
	}
	if p.MinSNR != 70 || p.ClusterEps != 0.7 || p.ClusterMinSamples != 3 {
		t.Errorf("unexpected clustering defaults: %+v", p)
	}
	if p.MinPersonPoints != 4 || p.MaxMedianRadius != 0.85 || p.PrefYMax != 3.5 || p.MinMedianSpeed != 0 {
		t.Errorf("unexpected gating defaults: %+v", p)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{"cluster_eps": 0.5, "min_snr": 90}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	p := cfg.Params()
	if p.ClusterEps != 0.5 {
		t.Errorf("cluster eps = %v, want 0.5", p.ClusterEps)
	}
	if p.MinSNR != 90 {
		t.Errorf("min snr = %d, want 90", p.MinSNR)
	}
	// untouched fields keep their defaults
	if p.MaxPoints != 50 || p.PrefYMax != 3.5 {
		t.Errorf("defaults disturbed: %+v", p)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	if _, err := LoadTuningConfig("tuning.yaml"); err == nil {
		t.Error("non-.json path accepted")
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, `{"cluster_eps": `)
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []string{
		`{"cluster_eps": -1}`,
		`{"max_points": 0}`,
		`{"min_person_points": 0}`,
		`{"max_median_radius": 0}`,
		`{"min_median_speed": -0.1}`,
		`{"min_y": 5, "max_y": 2}`,
	}
	for _, content := range tests {
		path := writeConfig(t, content)
		if _, err := LoadTuningConfig(path); err == nil {
			t.Errorf("invalid config accepted: %s", content)
		}
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"cluster_eps": 0.5}`)
	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	t.Setenv(EnvClusterEps, "0.9")
	t.Setenv(EnvMinSNR, "100")
	t.Setenv(EnvMinMedianSpeed, "0.3")

	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	p := cfg.Params()
	if p.ClusterEps != 0.9 {
		t.Errorf("cluster eps = %v, want env override 0.9", p.ClusterEps)
	}
	if p.MinSNR != 100 || p.MinMedianSpeed != 0.3 {
		t.Errorf("env overrides not applied: %+v", p)
	}
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	t.Setenv(EnvMaxPoints, "plenty")
	cfg := EmptyTuningConfig()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("unparseable env value accepted")
	}
}

func TestApplyEnvIgnoresEmpty(t *testing.T) {
	t.Setenv(EnvMaxPoints, "")
	cfg := EmptyTuningConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if diff := cmp.Diff(EmptyTuningConfig().Params(), cfg.Params()); diff != "" {
		t.Errorf("params changed by empty env vars (-want +got):\n%s", diff)
	}
}
