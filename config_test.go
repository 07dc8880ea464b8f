package lispcore

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/lispcore/sandbox"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvMaxCallDepth, "123")
	t.Setenv(EnvRunMode, "batch")
	t.Setenv(EnvDefaultPolicy, "allow")
	t.Setenv(EnvLogLevel, "debug")

	got, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	want := Config{MaxCallDepth: 123, RunMode: "batch", DefaultPolicy: sandbox.PolicyAllow, LogLevel: slog.LevelDebug}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, name := range []string{EnvMaxCallDepth, EnvRunMode, EnvDefaultPolicy, EnvLogLevel} {
		t.Setenv(name, "")
	}
	got, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), got); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, value string
	}{
		{EnvDefaultPolicy, "sometimes"},
		{EnvLogLevel, "loud"},
		{EnvMaxCallDepth, "deep"},
		{EnvMaxCallDepth, "1000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%q must fail", tt.name, tt.value)
			}
			if _, err := New(); err == nil {
				t.Errorf("New() with %s=%q must fail", tt.name, tt.value)
			}
		})
	}
}

func TestLoadConfig_SeesEnvironmentChanges(t *testing.T) {
	t.Setenv(EnvRunMode, "first")
	c, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.RunMode != "first" {
		t.Fatalf("RunMode = %q, want first", c.RunMode)
	}

	t.Setenv(EnvRunMode, "second")
	c, err = LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.RunMode != "second" {
		t.Errorf("after Setenv RunMode = %q, want second", c.RunMode)
	}

	interp, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if got := interp.Config().RunMode; got != "second" {
		t.Errorf("New().Config().RunMode = %q, want second", got)
	}
}
