package cfg

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	CollisionOverwrite = "overwrite"
	CollisionRetry     = "retry"
	OversizeTruncate   = "truncate"
	OversizeReject     = "reject"

	maxPasteSizeLimit = 100 * 1024 * 1024
	maxSlugLength     = 64
)

type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}
func (s Secret) Value() string {
	return string(s.value)
}
func (s Secret) Wipe() {
	for i := range s.value {
		s.value[i] = 0
	}
}
func (s Secret) String() string {
	return "***REDACTED***"
}

type Cfg struct {
	Port             string
	BindAddr         string
	Environment      string
	LogLevel         string
	StorageDir       string
	Domain           string
	SlugLength       int
	MaxPasteSize     int
	ReadChunkSize    int
	MaxBufferedBytes int64
	CollisionPolicy  string
	OversizePolicy   string
	CacheSize        int
	ServePastes      bool
	SyncWrites       bool
	EnableProfiler   bool
	TrustProxy       bool
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MetricsUser      string
	MetricsPass      Secret
}

// LoadEnvFile loads KEY=value pairs from path into the environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "stat env file")
	}
	return errors.Wrapf(godotenv.Load(path), "load env file %s", path)
}

func Load() (*Cfg, error) {
	c := &Cfg{}
	c.Port = getEnv("PORT", "8080")
	c.BindAddr = getEnv("BIND_ADDR", "")
	c.Environment = getEnv("ENVIRONMENT", "development")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.StorageDir = getEnv("STORAGE_DIR", "/var/www/purrito")
	c.Domain = getEnv("DOMAIN", "http://localhost:8080/")
	c.CollisionPolicy = strings.ToLower(getEnv("COLLISION_POLICY", CollisionOverwrite))
	c.OversizePolicy = strings.ToLower(getEnv("OVERSIZE_POLICY", OversizeTruncate))
	c.ServePastes = getEnv("SERVE_PASTES", "true") == "true"
	c.SyncWrites = getEnv("SYNC_WRITES", "true") == "true"
	c.EnableProfiler = getEnv("ENABLE_PROFILER", "false") == "true"
	c.TrustProxy = getEnv("TRUST_PROXY", "false") == "true"
	c.MetricsUser = getEnv("METRICS_USER", "")
	c.MetricsPass = NewSecret(getEnv("METRICS_PASS", ""))
	var err error
	c.SlugLength, err = getInt("SLUG_LENGTH", 7)
	if err != nil {
		return nil, err
	}
	c.MaxPasteSize, err = getInt("MAX_PASTE_SIZE", 64*1024)
	if err != nil {
		return nil, err
	}
	c.ReadChunkSize, err = getInt("READ_CHUNK_SIZE", 16*1024)
	if err != nil {
		return nil, err
	}
	c.MaxBufferedBytes, err = getInt64("MAX_BUFFERED_BYTES", 0)
	if err != nil {
		return nil, err
	}
	c.CacheSize, err = getInt("CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	c.ReadTimeout, err = getDuration("READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	c.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	c.IdleTimeout, err = getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	c.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	c.normalize()
	return c, nil
}

// ApplyFlags overrides c with command line flags. Flags not given keep the
// value already in c, so the order is flag > env > default.
func ApplyFlags(c *Cfg, args []string) error {
	fs := pflag.NewFlagSet("purrbin", pflag.ContinueOnError)
	fs.StringVarP(&c.Port, "port", "p", c.Port, "port to listen on")
	fs.StringVar(&c.BindAddr, "bind", c.BindAddr, "address to bind, empty for all interfaces")
	fs.StringVarP(&c.StorageDir, "storage", "s", c.StorageDir, "directory pastes are written to")
	fs.StringVarP(&c.Domain, "domain", "d", c.Domain, "URL prefix returned in front of each slug")
	fs.IntVarP(&c.SlugLength, "slug-length", "l", c.SlugLength, "number of characters in a slug")
	fs.IntVarP(&c.MaxPasteSize, "max-size", "m", c.MaxPasteSize, "maximum paste size in bytes")
	fs.StringVar(&c.CollisionPolicy, "collision", c.CollisionPolicy, "slug collision policy: overwrite or retry")
	fs.StringVar(&c.OversizePolicy, "oversize", c.OversizePolicy, "oversized paste policy: truncate or reject")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	c.CollisionPolicy = strings.ToLower(c.CollisionPolicy)
	c.OversizePolicy = strings.ToLower(c.OversizePolicy)
	c.normalize()
	return nil
}

func (c *Cfg) normalize() {
	if c.Domain != "" && !strings.HasSuffix(c.Domain, "/") {
		c.Domain += "/"
	}
	if c.MaxBufferedBytes == 0 && c.MaxPasteSize > 0 {
		c.MaxBufferedBytes = 64 * int64(c.MaxPasteSize)
	}
}

func Validate(c *Cfg) error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return errors.New("PORT must be a number")
	}
	if port < 1 || port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}

	if c.StorageDir == "" {
		return errors.New("STORAGE_DIR is required")
	}
	if err := checkWritableDir(c.StorageDir); err != nil {
		return err
	}

	if c.Domain == "" {
		return errors.New("DOMAIN is required")
	}
	u, err := url.Parse(c.Domain)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("DOMAIN must be an http:// or https:// URL")
	}

	if c.SlugLength <= 0 {
		return errors.New("SLUG_LENGTH must be positive")
	}
	if c.SlugLength > maxSlugLength {
		return fmt.Errorf("SLUG_LENGTH cannot exceed %d", maxSlugLength)
	}
	if c.MaxPasteSize <= 0 {
		return errors.New("MAX_PASTE_SIZE must be positive")
	}
	if c.MaxPasteSize > maxPasteSizeLimit {
		return errors.New("MAX_PASTE_SIZE cannot exceed 100MB")
	}
	if c.ReadChunkSize < 512 || c.ReadChunkSize > 1024*1024 {
		return errors.New("READ_CHUNK_SIZE must be between 512 and 1048576")
	}
	if c.MaxBufferedBytes < int64(c.MaxPasteSize) {
		return errors.New("MAX_BUFFERED_BYTES must be at least MAX_PASTE_SIZE")
	}

	switch c.CollisionPolicy {
	case CollisionOverwrite, CollisionRetry:
	default:
		return fmt.Errorf("COLLISION_POLICY must be %q or %q", CollisionOverwrite, CollisionRetry)
	}
	switch c.OversizePolicy {
	case OversizeTruncate, OversizeReject:
	default:
		return fmt.Errorf("OVERSIZE_POLICY must be %q or %q", OversizeTruncate, OversizeReject)
	}

	if c.CacheSize < 0 {
		return errors.New("CACHE_SIZE cannot be negative")
	}
	if c.CacheSize > 100000 {
		return errors.New("CACHE_SIZE cannot exceed 100000")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return errors.New("READ_TIMEOUT, WRITE_TIMEOUT and IDLE_TIMEOUT must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Environment == "production" {
		if c.MetricsUser == "" || c.MetricsPass.Value() == "" {
			return errors.New("METRICS_USER and METRICS_PASS are required in production")
		}
	}
	return nil
}

func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(err, "STORAGE_DIR is not accessible")
	}
	if !info.IsDir() {
		return fmt.Errorf("STORAGE_DIR %s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".purrbin-probe-*")
	if err != nil {
		return errors.Wrap(err, "STORAGE_DIR is not writable")
	}
	name := probe.Name()
	probe.Close()
	return errors.Wrap(os.Remove(name), "STORAGE_DIR probe cleanup")
}

func (c *Cfg) Wipe() {
	c.MetricsPass.Wipe()
}
func (c *Cfg) Addr() string {
	return c.BindAddr + ":" + c.Port
}
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getInt64(key string, fallback int64) (int64, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}
