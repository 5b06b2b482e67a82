package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "serial:\n  port: /dev/ttyUSB0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("expected default baud 115200, got %d", cfg.Serial.Baud)
	}
	if cfg.Bootloader.BannerSuffix != "BL > " {
		t.Fatalf("expected default banner suffix, got %q", cfg.Bootloader.BannerSuffix)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}
}

func TestLoadRejectsMissingSerialPort(t *testing.T) {
	path := writeTempConfig(t, "serial:\n  baud: 9600\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing serial.port")
	}
}

func TestLoadRejectsMqttEnabledWithoutBroker(t *testing.T) {
	path := writeTempConfig(t, "serial:\n  port: /dev/ttyUSB0\nmqtt:\n  enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for mqtt.enabled without broker")
	}
}
