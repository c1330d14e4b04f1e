package config

const (
	defaultConfigPath      = "~/.config/todo/config.toml"
	defaultStorePath       = "~/.local/share/todo/todo_list.sqlite"
	defaultPrefsPath       = "~/.local/share/todo/prefs.yaml"
	defaultRemoteURL       = "https://dummyjson.com/todos"
	defaultRemoteMaxTries  = 4
	defaultRemoteTimeout   = 60
	defaultSearchDebounce  = 300
	defaultSeedDescription = "none"
	defaultLogFormat       = "text"
	defaultLogLevel        = "warn"
)

// Environment overrides.
const (
	EnvStorePath = "TODO_STORE_PATH"
	EnvRemoteURL = "TODO_REMOTE_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Path:      defaultStorePath,
			PrefsPath: defaultPrefsPath,
		},
		Remote: Remote{
			URL:            defaultRemoteURL,
			MaxTries:       defaultRemoteMaxTries,
			TimeoutSeconds: defaultRemoteTimeout,
		},
		Search: Search{
			DebounceMillis: defaultSearchDebounce,
		},
		Seed: Seed{
			Description: defaultSeedDescription,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
