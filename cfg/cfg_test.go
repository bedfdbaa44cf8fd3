package cfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validCfg(t *testing.T) *Cfg {
	t.Helper()
	return &Cfg{
		Port:             "8080",
		Environment:      "development",
		LogLevel:         "info",
		StorageDir:       t.TempDir(),
		Domain:           "https://p.example/",
		SlugLength:       7,
		MaxPasteSize:     65536,
		ReadChunkSize:    16384,
		MaxBufferedBytes: 64 * 65536,
		CollisionPolicy:  CollisionOverwrite,
		OversizePolicy:   OversizeTruncate,
		CacheSize:        256,
		ReadTimeout:      time.Second,
		WriteTimeout:     time.Second,
		IdleTimeout:      time.Second,
		ShutdownTimeout:  time.Second,
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_DIR", "DOMAIN", "SLUG_LENGTH", "MAX_PASTE_SIZE", "MAX_BUFFERED_BYTES", "COLLISION_POLICY", "OVERSIZE_POLICY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "8080" || c.StorageDir != "/var/www/purrito" || c.SlugLength != 7 || c.MaxPasteSize != 65536 {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.Domain != "http://localhost:8080/" {
		t.Errorf("Domain = %q", c.Domain)
	}
	if c.MaxBufferedBytes != 64*65536 {
		t.Errorf("MaxBufferedBytes = %d", c.MaxBufferedBytes)
	}
	if c.CollisionPolicy != CollisionOverwrite || c.OversizePolicy != OversizeTruncate {
		t.Errorf("policies = %s/%s", c.CollisionPolicy, c.OversizePolicy)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DOMAIN", "https://p.example")
	t.Setenv("SLUG_LENGTH", "6")
	t.Setenv("MAX_PASTE_SIZE", "1000")
	t.Setenv("COLLISION_POLICY", "RETRY")
	t.Setenv("READ_TIMEOUT", "5s")
	t.Setenv("METRICS_PASS", "hunter2")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "9090" || c.SlugLength != 6 || c.MaxPasteSize != 1000 {
		t.Errorf("env not applied: %+v", c)
	}
	if c.Domain != "https://p.example/" {
		t.Errorf("trailing slash not added: %q", c.Domain)
	}
	if c.CollisionPolicy != CollisionRetry {
		t.Errorf("CollisionPolicy = %q", c.CollisionPolicy)
	}
	if c.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", c.ReadTimeout)
	}
	if c.MetricsPass.String() != "***REDACTED***" || c.MetricsPass.Value() != "hunter2" {
		t.Error("secret not wrapped")
	}
}

func TestLoadBadNumbers(t *testing.T) {
	for _, k := range []string{"SLUG_LENGTH", "MAX_PASTE_SIZE", "MAX_BUFFERED_BYTES", "CACHE_SIZE"} {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, "lots")
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), k) {
				t.Errorf("err = %v, want mention of %s", err, k)
			}
		})
	}
	t.Setenv("IDLE_TIMEOUT", "forever")
	if _, err := Load(); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestApplyFlagsOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SLUG_LENGTH", "6")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	args := []string{"-p", "7070", "--domain", "https://x.example", "--max-size", "2048", "--oversize", "REJECT"}
	if err := ApplyFlags(c, args); err != nil {
		t.Fatal(err)
	}
	if c.Port != "7070" {
		t.Errorf("Port = %q, want flag value", c.Port)
	}
	if c.SlugLength != 6 {
		t.Errorf("SlugLength = %d, want env value kept", c.SlugLength)
	}
	if c.Domain != "https://x.example/" || c.MaxPasteSize != 2048 || c.OversizePolicy != OversizeReject {
		t.Errorf("flags not applied: %+v", c)
	}
}

func TestApplyFlagsErrors(t *testing.T) {
	c := validCfg(t)
	if err := ApplyFlags(c, []string{"--no-such-flag"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if err := ApplyFlags(c, []string{"stray"}); err == nil {
		t.Error("positional argument accepted")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PURRBIN_TEST_DOMAIN=https://env.example/\nPURRBIN_TEST_KEEP=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PURRBIN_TEST_KEEP", "process")
	t.Cleanup(func() { os.Unsetenv("PURRBIN_TEST_DOMAIN") })
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PURRBIN_TEST_DOMAIN"); got != "https://env.example/" {
		t.Errorf("PURRBIN_TEST_DOMAIN = %q", got)
	}
	if got := os.Getenv("PURRBIN_TEST_KEEP"); got != "process" {
		t.Errorf("env file overrode process env: %q", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("missing env file: %v", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("empty path: %v", err)
	}
}

func TestValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		mod  func(c *Cfg)
		want string
	}{
		{"ok", func(c *Cfg) {}, ""},
		{"empty port", func(c *Cfg) { c.Port = "" }, "PORT"},
		{"port not number", func(c *Cfg) { c.Port = "http" }, "PORT"},
		{"port zero", func(c *Cfg) { c.Port = "0" }, "PORT"},
		{"port too high", func(c *Cfg) { c.Port = "70000" }, "PORT"},
		{"no storage", func(c *Cfg) { c.StorageDir = "" }, "STORAGE_DIR"},
		{"missing storage", func(c *Cfg) { c.StorageDir = filepath.Join(file, "nope") }, "STORAGE_DIR"},
		{"storage is file", func(c *Cfg) { c.StorageDir = file }, "STORAGE_DIR"},
		{"no domain", func(c *Cfg) { c.Domain = "" }, "DOMAIN"},
		{"ftp domain", func(c *Cfg) { c.Domain = "ftp://p.example/" }, "DOMAIN"},
		{"hostless domain", func(c *Cfg) { c.Domain = "https:///" }, "DOMAIN"},
		{"slug zero", func(c *Cfg) { c.SlugLength = 0 }, "SLUG_LENGTH"},
		{"slug too long", func(c *Cfg) { c.SlugLength = 65 }, "SLUG_LENGTH"},
		{"size zero", func(c *Cfg) { c.MaxPasteSize = 0 }, "MAX_PASTE_SIZE"},
		{"size huge", func(c *Cfg) { c.MaxPasteSize = 200 * 1024 * 1024; c.MaxBufferedBytes = 1 << 40 }, "MAX_PASTE_SIZE"},
		{"chunk small", func(c *Cfg) { c.ReadChunkSize = 10 }, "READ_CHUNK_SIZE"},
		{"budget below max", func(c *Cfg) { c.MaxBufferedBytes = 10 }, "MAX_BUFFERED_BYTES"},
		{"bad collision", func(c *Cfg) { c.CollisionPolicy = "ignore" }, "COLLISION_POLICY"},
		{"bad oversize", func(c *Cfg) { c.OversizePolicy = "drop" }, "OVERSIZE_POLICY"},
		{"negative cache", func(c *Cfg) { c.CacheSize = -1 }, "CACHE_SIZE"},
		{"zero timeout", func(c *Cfg) { c.ReadTimeout = 0 }, "TIMEOUT"},
		{"zero shutdown", func(c *Cfg) { c.ShutdownTimeout = 0 }, "SHUTDOWN_TIMEOUT"},
		{"prod without metrics creds", func(c *Cfg) { c.Environment = "production" }, "METRICS_USER"},
		{"prod with metrics creds", func(c *Cfg) {
			c.Environment = "production"
			c.MetricsUser = "prom"
			c.MetricsPass = NewSecret("pw")
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCfg(t)
			tt.mod(c)
			err := Validate(c)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestValidateLeavesNoProbeFile(t *testing.T) {
	c := validCfg(t)
	if err := Validate(c); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(c.StorageDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("storage dir holds %d entries after Validate", len(entries))
	}
}

func TestWipe(t *testing.T) {
	c := validCfg(t)
	c.MetricsPass = NewSecret("hunter2")
	c.Wipe()
	if c.MetricsPass.Value() == "hunter2" {
		t.Error("secret survived Wipe")
	}
}

func TestAddr(t *testing.T) {
	c := validCfg(t)
	c.BindAddr = "127.0.0.1"
	if c.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", c.Addr())
	}
}
