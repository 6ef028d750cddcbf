package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Session   SessionConfig
	Dispatch  DispatchConfig
	Database  DatabaseConfig
	LogLevel  string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	SendBuffer  int           `mapstructure:"sendBuffer"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
}

type DispatchConfig struct {
	// EnableGlobalBroadcast gates the fallback delivery to every live
	// connection for events that carry no conversation id. When off,
	// such events are dropped.
	EnableGlobalBroadcast bool `mapstructure:"enableGlobalBroadcast"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}
