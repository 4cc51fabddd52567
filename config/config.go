package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// Default returns the configuration used when no file or flag overrides a setting
func Default() types.Configuration {
	return types.Configuration{
		BrokerID:        1,
		LogDir:          filepath.Join(os.TempDir(), "KafkaNet"),
		BrokerHost:      "localhost",
		BrokerPort:      9092,
		AdminPort:       0,
		LogLevel:        "INFO",
		MaxRequestBytes: protocol.DefaultMaxRequestBytes,
	}
}

// Load reads the YAML file at path over the defaults and validates the result
func Load(path string) (types.Configuration, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("could not read config file %v: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("could not parse config file %v: %w", path, err)
	}
	return config, Validate(config)
}

// Validate checks that config can start a broker
func Validate(config types.Configuration) error {
	var result *multierror.Error
	if config.LogDir == "" {
		result = multierror.Append(result, errors.New("log_dir is required"))
	}
	if config.BrokerPort == 0 || config.BrokerPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("broker_port %d is out of range", config.BrokerPort))
	}
	if config.AdminPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("admin_port %d is out of range", config.AdminPort))
	}
	if config.AdminPort != 0 && config.AdminPort == config.BrokerPort {
		result = multierror.Append(result, errors.New("admin_port must differ from broker_port"))
	}
	if hclog.LevelFromString(config.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("unknown log_level %q", config.LogLevel))
	}
	if config.MaxRequestBytes == 0 {
		result = multierror.Append(result, errors.New("max_request_bytes must be positive"))
	}
	return result.ErrorOrNil()
}
