package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT QoS = %d, want default 1", cfg.MQTT.QoS)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API port = %d, want default 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  broker:
    host: broker.fleet.local
    port: 8883
    tls: true
api:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.fleet.local" {
		t.Errorf("MQTT host = %q", cfg.MQTT.Broker.Host)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("MQTT TLS should be enabled")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  broker:
    host: from-file
`)
	t.Setenv("ROVERCORE_MQTT_HOST", "from-env")
	t.Setenv("ROVERCORE_MQTT_PORT", "2883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("MQTT host = %q, want from-env", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 2883 {
		t.Errorf("MQTT port = %d, want 2883", cfg.MQTT.Broker.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid qos", "mqtt:\n  qos: 3\n"},
		{"invalid api port", "api:\n  port: 0\n"},
		{"influxdb enabled without url", "influxdb:\n  enabled: true\n  bucket: fleet\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Load should fail validation")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
