package config

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFileName = "dbx-dl.ini"
	DefaultWorkers  = 8

	ProviderDropbox = "dropbox"
	ProviderS3      = "s3"
	ProviderBlob    = "blob"

	envPrefix = "DBXDL_"
)

type Config struct {
	Provider    string
	APIKey      string
	DownloadDir string
	ToDownload  []string
	Workers     int

	ApiURL     string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string

	BucketURL string

	// File is the settings file the values were read from.
	File string
}

// ConfigError reports a settings file that is missing, unreadable or
// lacks a required key.
type ConfigError struct {
	File string
	Key  string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config %s: %s: %v", e.File, e.Key, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.File, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// executableDir is replaced in tests.
var executableDir = func() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// DefaultPath returns the settings file location next to the executable.
func DefaultPath() (string, error) {
	dir, err := executableDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// Load reads the settings file at path (the default location when empty),
// applies DBXDL_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, &ConfigError{File: DefaultFileName, Err: err}
		}
		path = p
	}

	values, err := readFile(path)
	if err != nil {
		return nil, &ConfigError{File: path, Err: err}
	}

	get := func(key, defaultValue string) string {
		return getEnv(envPrefix+strings.ToUpper(key), valueOr(values[key], defaultValue))
	}

	cfg := &Config{
		Provider:    strings.ToLower(get("provider", ProviderDropbox)),
		APIKey:      get("api_key", ""),
		DownloadDir: get("dl_dir", ""),
		ToDownload:  splitList(get("to_dl", "")),
		ApiURL:      get("api_url", ""),
		AccessKey:   get("access_key", ""),
		SecretKey:   get("secret_key", ""),
		BucketName:  get("bucket", ""),
		Region:      get("region", ""),
		BucketURL:   get("bucket_url", ""),
		File:        path,
	}

	workers := get("workers", strconv.Itoa(DefaultWorkers))
	cfg.Workers, err = strconv.Atoi(workers)
	if err != nil || cfg.Workers <= 0 {
		return nil, &ConfigError{File: path, Key: "workers", Err: fmt.Errorf("invalid worker count %q", workers)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DownloadDir != "" && !filepath.IsAbs(cfg.DownloadDir) {
		dir, err := executableDir()
		if err != nil {
			return nil, &ConfigError{File: path, Key: "dl_dir", Err: err}
		}
		cfg.DownloadDir = filepath.Join(dir, cfg.DownloadDir)
	}

	return cfg, nil
}

// Validate checks that the keys required by the selected provider are set.
func (c *Config) Validate() error {
	required := []string{"dl_dir"}
	switch c.Provider {
	case ProviderDropbox:
		required = append(required, "api_key")
	case ProviderS3:
		required = append(required, "bucket")
	case ProviderBlob:
		required = append(required, "bucket_url")
	default:
		return &ConfigError{File: c.File, Key: "provider", Err: fmt.Errorf("unsupported provider %q", c.Provider)}
	}

	for _, key := range required {
		if c.value(key) == "" {
			return &ConfigError{File: c.File, Key: key, Err: fmt.Errorf("required value is missing")}
		}
	}
	return nil
}

func (c *Config) value(key string) string {
	switch key {
	case "dl_dir":
		return c.DownloadDir
	case "api_key":
		return c.APIKey
	case "bucket":
		return c.BucketName
	case "bucket_url":
		return c.BucketURL
	}
	return ""
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseINI(data)
	}
}

// parseINI accepts the dbx-dl.ini dialect:
// section headers and ';' comments are dropped before godotenv sees it.
func parseINI(data []byte) (map[string]string, error) {
	var buf bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") || strings.HasPrefix(line, ";") {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	values, err := godotenv.Unmarshal(buf.String())
	if err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return lowerKeys(values), nil
}

func parseYAML(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	// Settings may be nested under a "main" section like the INI layout.
	if section, ok := raw["main"].(map[string]any); ok {
		raw = section
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			values[key] = strings.Join(items, ",")
		default:
			values[key] = fmt.Sprint(v)
		}
	}
	return lowerKeys(values), nil
}

func lowerKeys(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[strings.ToLower(k)] = v
	}
	return out
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func valueOr(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		slog.Debug("config value overridden from environment", "key", key)
		return value
	}
	return defaultValue
}
