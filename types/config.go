package types

// Configuration holds the broker process settings
type Configuration struct {
	BrokerID        int    `yaml:"broker_id"`
	LogDir          string `yaml:"log_dir"`
	BrokerHost      string `yaml:"broker_host"`
	BrokerPort      uint32 `yaml:"broker_port"`
	AdminPort       uint32 `yaml:"admin_port"` // 0 disables the admin HTTP endpoint
	LogLevel        string `yaml:"log_level"`
	MaxRequestBytes uint32 `yaml:"max_request_bytes"`
}
