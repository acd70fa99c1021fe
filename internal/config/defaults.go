package config

const (
	defaultStateDir  = "~/.local/share/cyrfix"
	defaultThreshold = 0.2
	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Scan: Scan{
			Threshold:      defaultThreshold,
			Backups:        true,
			FollowSymlinks: true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
