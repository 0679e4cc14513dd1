package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func withExecutableDir(t *testing.T, dir string) {
	t.Helper()
	original := executableDir
	executableDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { executableDir = original })
}

func writeSettings(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}
	return path
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")

	result := getEnv("TEST_VAR", "default_value")
	if result != "test_value" {
		t.Errorf("getEnv() = %s, want %s", result, "test_value")
	}

	result = getEnv("NON_EXISTENT_VAR", "default_value")
	if result != "default_value" {
		t.Errorf("getEnv() = %s, want %s", result, "default_value")
	}

	t.Setenv("EMPTY_VAR", "")

	result = getEnv("EMPTY_VAR", "default_value")
	if result != "default_value" {
		t.Errorf("getEnv() = %s, want %s", result, "default_value")
	}
}

func TestLoad(t *testing.T) {
	exeDir := t.TempDir()
	withExecutableDir(t, exeDir)

	path := writeSettings(t, "dbx-dl.ini", `[main]
; credentials for the account
api_key = secret-token
dl_dir = downloads
to_dl = Photos, Documents,,
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Provider != ProviderDropbox {
		t.Errorf("config.Provider = %s, want %s", config.Provider, ProviderDropbox)
	}

	if config.APIKey != "secret-token" {
		t.Errorf("config.APIKey = %s, want %s", config.APIKey, "secret-token")
	}

	if want := filepath.Join(exeDir, "downloads"); config.DownloadDir != want {
		t.Errorf("config.DownloadDir = %s, want %s", config.DownloadDir, want)
	}

	if want := []string{"Photos", "Documents"}; !reflect.DeepEqual(config.ToDownload, want) {
		t.Errorf("config.ToDownload = %v, want %v", config.ToDownload, want)
	}

	if config.Workers != DefaultWorkers {
		t.Errorf("config.Workers = %d, want %d", config.Workers, DefaultWorkers)
	}

	if config.File != path {
		t.Errorf("config.File = %s, want %s", config.File, path)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	withExecutableDir(t, t.TempDir())

	absDir := t.TempDir()
	path := writeSettings(t, "dbx-dl.ini", "api_key=from-file\ndl_dir=downloads\n")

	t.Setenv("DBXDL_API_KEY", "from-env")
	t.Setenv("DBXDL_DL_DIR", absDir)
	t.Setenv("DBXDL_WORKERS", "3")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.APIKey != "from-env" {
		t.Errorf("config.APIKey = %s, want %s", config.APIKey, "from-env")
	}

	if config.DownloadDir != absDir {
		t.Errorf("config.DownloadDir = %s, want %s", config.DownloadDir, absDir)
	}

	if config.Workers != 3 {
		t.Errorf("config.Workers = %d, want %d", config.Workers, 3)
	}

	if config.ToDownload != nil {
		t.Errorf("config.ToDownload = %v, want nil", config.ToDownload)
	}
}

func TestLoadYAML(t *testing.T) {
	withExecutableDir(t, t.TempDir())

	dlDir := t.TempDir()
	path := writeSettings(t, "dbx-dl.yaml", `main:
  provider: s3
  bucket: backups
  region: eu-west-1
  api_url: http://localhost:9000
  access_key: key
  secret_key: secret
  dl_dir: `+dlDir+`
  workers: 4
  to_dl:
    - Photos
    - Music
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Provider != ProviderS3 {
		t.Errorf("config.Provider = %s, want %s", config.Provider, ProviderS3)
	}

	if config.BucketName != "backups" {
		t.Errorf("config.BucketName = %s, want %s", config.BucketName, "backups")
	}

	if config.Region != "eu-west-1" {
		t.Errorf("config.Region = %s, want %s", config.Region, "eu-west-1")
	}

	if config.ApiURL != "http://localhost:9000" {
		t.Errorf("config.ApiURL = %s, want %s", config.ApiURL, "http://localhost:9000")
	}

	if config.Workers != 4 {
		t.Errorf("config.Workers = %d, want %d", config.Workers, 4)
	}

	if want := []string{"Photos", "Music"}; !reflect.DeepEqual(config.ToDownload, want) {
		t.Errorf("config.ToDownload = %v, want %v", config.ToDownload, want)
	}
}

func TestLoadErrors(t *testing.T) {
	withExecutableDir(t, t.TempDir())

	tests := []struct {
		name    string
		content string
		missing bool
		key     string
	}{
		{"Missing file", "", true, ""},
		{"Missing api key", "dl_dir=downloads\n", false, "api_key"},
		{"Missing download dir", "api_key=token\n", false, "dl_dir"},
		{"Unknown provider", "provider=ftp\napi_key=token\ndl_dir=downloads\n", false, "provider"},
		{"S3 without bucket", "provider=s3\ndl_dir=downloads\n", false, "bucket"},
		{"Blob without url", "provider=blob\ndl_dir=downloads\n", false, "bucket_url"},
		{"Invalid workers", "api_key=token\ndl_dir=downloads\nworkers=many\n", false, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dbx-dl.ini")
			if !tt.missing {
				path = writeSettings(t, "dbx-dl.ini", tt.content)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected error")
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Load() error = %T, want *ConfigError", err)
			}

			if cfgErr.Key != tt.key {
				t.Errorf("ConfigError.Key = %q, want %q", cfgErr.Key, tt.key)
			}

			if tt.missing && !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Load() error = %v, want os.ErrNotExist", err)
			}
		})
	}
}

func TestLoadDefaultPath(t *testing.T) {
	exeDir := t.TempDir()
	withExecutableDir(t, exeDir)

	content := "api_key=token\ndl_dir=" + exeDir + "\n"
	if err := os.WriteFile(filepath.Join(exeDir, DefaultFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(exeDir, DefaultFileName); config.File != want {
		t.Errorf("config.File = %s, want %s", config.File, want)
	}
}

func TestValidateProviderOverride(t *testing.T) {
	cfg := &Config{Provider: ProviderDropbox, APIKey: "token", DownloadDir: "/tmp/dl", File: "dbx-dl.ini"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg.Provider = ProviderS3
	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "bucket" {
		t.Errorf("Validate() error = %v, want missing bucket", err)
	}
}
