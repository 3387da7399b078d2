package config

const (
	defaultUserName = "default"

	defaultLLMBaseURL = "https://api.deepseek.com"
	defaultLLMModel   = "deepseek-chat"
	defaultLLMTimeout = 120

	defaultStorageBaseDir   = "conversations"
	defaultMaxConversations = 10
	defaultMaxStorageBytes  = 1 * 1024 * 1024

	defaultMaxContextTokens = 3500

	defaultLTMProvider   = "sqlite"
	defaultLTMDimensions = 1536

	defaultAPIListen = ":8080"

	defaultEventStreamTopic = "reqvibe.sessions"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		User: UserConfig{
			Name: defaultUserName,
		},
		LLM: LLMConfig{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Storage: StorageConfig{
			BaseDir:          defaultStorageBaseDir,
			MaxConversations: defaultMaxConversations,
			MaxStorageBytes:  defaultMaxStorageBytes,
		},
		Memory: MemoryConfig{
			MaxContextTokens: defaultMaxContextTokens,
		},
		LTM: LTMConfig{
			Provider:   defaultLTMProvider,
			Dimensions: defaultLTMDimensions,
			Enabled:    true,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventStreamTopic,
		},
	}
}
