package logger

// Config controls the production logger.
type Config struct {
	LogFile    string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxAge     int    `mapstructure:"max_age"`     // days
	MaxBackups int    `mapstructure:"max_backups"` // files
	Compress   bool   `mapstructure:"compress"`
	// Development enables debug level and the development encoder.
	Development bool `mapstructure:"development"`
	// Pretty switches the console output to short colored lines.
	Pretty bool `mapstructure:"pretty"`
}

func DefaultConfig() *Config {
	return &Config{
		LogFile:    "logs/ammd.log",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}
