package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CefBoud/kafkanet/protocol"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kafkanet.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
broker_id: 3
log_dir: /var/lib/kafkanet
broker_port: 19092
admin_port: 19093
log_level: debug
`)
	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.BrokerID != 3 || config.LogDir != "/var/lib/kafkanet" || config.BrokerPort != 19092 || config.AdminPort != 19093 || config.LogLevel != "debug" {
		t.Errorf("config = %+v", config)
	}
	if config.BrokerHost != "localhost" || config.MaxRequestBytes != protocol.DefaultMaxRequestBytes {
		t.Errorf("unset fields lost their defaults: %+v", config)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file should fail")
	}
	if _, err := Load(writeConfig(t, "broker_port: [not a number")); err == nil {
		t.Errorf("malformed yaml should fail")
	}
}

func TestValidate(t *testing.T) {
	config := Default()
	config.LogDir = ""
	config.BrokerPort = 0
	config.LogLevel = "chatty"
	config.MaxRequestBytes = 0

	err := Validate(config)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_dir", "broker_port", "log_level", "max_request_bytes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q doesn't mention %s", err, want)
		}
	}

	config = Default()
	config.AdminPort = config.BrokerPort
	if err := Validate(config); err == nil || !strings.Contains(err.Error(), "admin_port") {
		t.Errorf("same admin and broker port: %v", err)
	}
}
