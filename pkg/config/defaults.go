package config

const (
	defaultListen     = ":8090"
	defaultModelBase  = "https://api.openai.com/v1"
	defaultModelName  = "gpt-4o"
	defaultMaxRounds  = 4
	defaultSQLitePath = "" // empty means in-memory
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Model: ModelConfig{
			BaseURL:   defaultModelBase,
			Name:      defaultModelName,
			MaxRounds: defaultMaxRounds,
		},
		Storage: StorageConfig{
			SQLitePath: defaultSQLitePath,
		},
	}
}
