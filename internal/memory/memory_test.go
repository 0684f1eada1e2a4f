package memory

import (
	"os"
	"runtime/debug"
	"testing"
)

func resetMemLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvNoVariables(t *testing.T) {
	resetMemLimit(t)
	os.Unsetenv("GOMEMLIMIT")
	os.Unsetenv("MEMORY_LIMIT")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("expected Configured=false with no env vars")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want none", result.Source)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	resetMemLimit(t)
	os.Unsetenv("GOMEMLIMIT")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB

	result := ConfigureFromEnv()
	if !result.Configured {
		t.Fatal("expected Configured=true")
	}
	if result.Source != "MEMORY_LIMIT" {
		t.Errorf("Source = %q, want MEMORY_LIMIT", result.Source)
	}
	limit := int64(1073741824)
	want := int64(float64(limit) * DefaultMemoryRatio)
	if result.GoMemLimit != want {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, want)
	}
	if got := debug.SetMemoryLimit(-1); got != want {
		t.Errorf("runtime limit = %d, want %d", got, want)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	resetMemLimit(t)
	os.Unsetenv("GOMEMLIMIT")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()
	if result.Ratio != 0.5 {
		t.Errorf("Ratio = %f, want 0.5", result.Ratio)
	}
	if result.GoMemLimit != 500000000 {
		t.Errorf("GoMemLimit = %d, want 500000000", result.GoMemLimit)
	}
}

func TestConfigureFromEnvBadRatioFallsBack(t *testing.T) {
	resetMemLimit(t)
	os.Unsetenv("GOMEMLIMIT")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "1.5")

	result := ConfigureFromEnv()
	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Ratio = %f, want default %f", result.Ratio, DefaultMemoryRatio)
	}
}

func TestConfigureFromEnvBadLimit(t *testing.T) {
	resetMemLimit(t)
	os.Unsetenv("GOMEMLIMIT")
	t.Setenv("MEMORY_LIMIT", "not-a-number")

	before := debug.SetMemoryLimit(-1)
	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("expected Configured=false with unparsable limit")
	}
	if got := debug.SetMemoryLimit(-1); got != before {
		t.Errorf("runtime limit changed to %d despite bad input", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
