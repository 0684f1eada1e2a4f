package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("STARTUP_TEST_SET", "value")
	if got := getEnv("STARTUP_TEST_SET", "default"); got != "value" {
		t.Errorf("getEnv set = %q, want %q", got, "value")
	}
	if got := getEnv("STARTUP_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getEnv unset = %q, want %q", got, "default")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"false", true, false},
		{"1", false, true},
		{"0", true, false},
		{"", true, true},
		{"notabool", true, true},
	}
	for _, tt := range tests {
		if tt.value == "" {
			os.Unsetenv("STARTUP_TEST_BOOL")
		} else {
			t.Setenv("STARTUP_TEST_BOOL", tt.value)
		}
		if got := getEnvBool("STARTUP_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"64", 64},
		{"", 32},
		{"-5", 32},
		{"zero", 32},
	}
	for _, tt := range tests {
		if tt.value == "" {
			os.Unsetenv("STARTUP_TEST_INT")
		} else {
			t.Setenv("STARTUP_TEST_INT", tt.value)
		}
		if got := getEnvInt("STARTUP_TEST_INT", 32); got != tt.want {
			t.Errorf("getEnvInt(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("STARTUP_TEST_DUR", "750ms")
	if got := getEnvDuration("STARTUP_TEST_DUR", time.Second); got != 750*time.Millisecond {
		t.Errorf("getEnvDuration = %v, want 750ms", got)
	}
	t.Setenv("STARTUP_TEST_DUR", "-1s")
	if got := getEnvDuration("STARTUP_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("getEnvDuration negative = %v, want default", got)
	}
}

func TestLoadConfigRequiresDatabasePath(t *testing.T) {
	os.Unsetenv("DB_PATH")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig without DB_PATH should fail")
	}
}

func TestLoadConfigRejectsDirectory(t *testing.T) {
	t.Setenv("DB_PATH", t.TempDir())
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig with a directory DB_PATH should fail")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	if err := os.WriteFile(path, make([]byte, 512), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_PATH", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("MetricsPort = %q, want 9090", cfg.MetricsPort)
	}
	if !cfg.MetricsEnabled || !cfg.WatchEnabled {
		t.Error("metrics and watch should default to enabled")
	}
	if cfg.CacheSize != 8192 || cfg.ParseBatchSize != 32 {
		t.Errorf("CacheSize/ParseBatchSize = %d/%d, want 8192/32", cfg.CacheSize, cfg.ParseBatchSize)
	}
	if cfg.WatchDebounce != 300*time.Millisecond {
		t.Errorf("WatchDebounce = %v, want 300ms", cfg.WatchDebounce)
	}
	if !filepath.IsAbs(cfg.DatabasePath) {
		t.Errorf("DatabasePath not absolute: %s", cfg.DatabasePath)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(http.ResponseWriter, *http.Request) {}).Methods("GET")
	router.HandleFunc("/api/pages", func(http.ResponseWriter, *http.Request) {}).Methods("GET")
	router.HandleFunc("/api/refresh", func(http.ResponseWriter, *http.Request) {}).Methods("POST")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(routes))
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "health"},
		{"/api/pages", "api/pages"},
		{"/api/page/{number}", "api/page"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" {
		t.Error("build info missing version fields")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("build info missing platform fields")
	}
}
