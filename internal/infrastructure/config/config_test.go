package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
ccu:
  address: "192.168.1.50"
influxdb:
  host: "localhost"
  org: "home"
  bucket: "ccu"
  token: "secret"
buffer:
  size: 25
whitelist:
  - "HUMIDITY"
  - "TEMPERATURE"
datapoints:
  - "HmIP-RF.0001D3C99C6AB3:1.STATE"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CCU.Address != "192.168.1.50" {
		t.Errorf("CCU.Address = %q, want %q", cfg.CCU.Address, "192.168.1.50")
	}
	if cfg.InfluxDB.Host != "localhost" {
		t.Errorf("InfluxDB.Host = %q, want %q", cfg.InfluxDB.Host, "localhost")
	}
	if cfg.Buffer.Size != 25 {
		t.Errorf("Buffer.Size = %d, want 25", cfg.Buffer.Size)
	}
	if len(cfg.Whitelist) != 2 {
		t.Errorf("len(Whitelist) = %d, want 2", len(cfg.Whitelist))
	}
	if len(cfg.Datapoints) != 1 {
		t.Errorf("len(Datapoints) = %d, want 1", len(cfg.Datapoints))
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}

	if cfg.CCU.RegaPort != 8181 {
		t.Errorf("CCU.RegaPort = %d, want 8181", cfg.CCU.RegaPort)
	}
	if cfg.Buffer.Size != 1 {
		t.Errorf("Buffer.Size = %d, want 1", cfg.Buffer.Size)
	}
	if cfg.Poller.Interval != 60 {
		t.Errorf("Poller.Interval = %d, want 60", cfg.Poller.Interval)
	}
	if cfg.InfluxDB.RetryDelay != 30 {
		t.Errorf("InfluxDB.RetryDelay = %d, want 30", cfg.InfluxDB.RetryDelay)
	}
	if cfg.API.Port != 8123 {
		t.Errorf("API.Port = %d, want 8123", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("buffer: [not a map"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CCUFLUX_CCU_ADDRESS", "ccu.example")
	t.Setenv("CCUFLUX_INFLUXDB_TOKEN", "from-env")

	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CCU.Address != "ccu.example" {
		t.Errorf("CCU.Address = %q, want %q", cfg.CCU.Address, "ccu.example")
	}
	if cfg.InfluxDB.Token != "from-env" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "from-env")
	}
}

func TestValidate_BufferSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.Buffer.Size = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for buffer.size 0, got nil")
	}
}

func TestValidate_InfluxRequiresOrgAndBucket(t *testing.T) {
	cfg := defaultConfig()
	cfg.InfluxDB.Host = "localhost"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when org/bucket missing, got nil")
	}

	cfg.InfluxDB.Org = "home"
	cfg.InfluxDB.Bucket = "ccu"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_AbsentSectionsAllowed(t *testing.T) {
	// No CCU address and no database host is a degraded mode, not an error.
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestSave_Roundtrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := defaultConfig()
	cfg.CCU.Address = "192.168.1.50"
	cfg.Whitelist = []string{"HUMIDITY"}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CCU.Address != "192.168.1.50" {
		t.Errorf("CCU.Address = %q, want %q", loaded.CCU.Address, "192.168.1.50")
	}
	if len(loaded.Whitelist) != 1 || loaded.Whitelist[0] != "HUMIDITY" {
		t.Errorf("Whitelist = %v, want [HUMIDITY]", loaded.Whitelist)
	}
}

func TestInfluxDBConfig_URL(t *testing.T) {
	tests := []struct {
		name string
		cfg  InfluxDBConfig
		want string
	}{
		{"with port", InfluxDBConfig{Host: "localhost", Port: 8086, Protocol: "http"}, "http://localhost:8086"},
		{"without port", InfluxDBConfig{Host: "db.example", Protocol: "https"}, "https://db.example"},
		{"default protocol", InfluxDBConfig{Host: "localhost", Port: 8086}, "http://localhost:8086"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
