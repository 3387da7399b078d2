package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "reqvibe chat" and "reqvibe serve").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "llm.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagUser             = "user"
	FlagModel            = "model"
	FlagBaseURL          = "base-url"
	FlagAPIKey           = "api-key"
	FlagAPIListen        = "api-listen"
	FlagBaseDir          = "base-dir"
	FlagMaxConversations = "max-conversations"
	FlagMaxStorageBytes  = "max-storage-bytes"
	FlagMaxContextTokens = "max-context-tokens"
	FlagLTMProvider      = "ltm-provider"
	FlagLTMTarget        = "ltm-target"
	FlagKafkaTopic       = "kafka-topic"
)

// Flags is the shared registry used by the reqvibe commands.
var Flags = FlagSet{
	FlagUser: {
		Name: "user", Shorthand: "u", ViperKey: "user.name",
		Description: "username whose conversations to operate on",
	},
	FlagModel: {
		Name: "model", Shorthand: "m", ViperKey: "llm.model",
		Description: "chat model to use",
	},
	FlagBaseURL: {
		Name: "base-url", ViperKey: "llm.base_url",
		Description: "base URL of the OpenAI-compatible API",
	},
	FlagAPIKey: {
		Name: "api-key", ViperKey: "llm.api_key",
		Description: "API key for the LLM provider",
	},
	FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "address for the API server to listen on",
	},
	FlagBaseDir: {
		Name: "base-dir", ViperKey: "storage.base_dir",
		Description: "root directory for per-user conversation storage",
	},
	FlagMaxConversations: {
		Name: "max-conversations", ViperKey: "storage.max_conversations",
		Description: "maximum sessions kept per user",
	},
	FlagMaxStorageBytes: {
		Name: "max-storage-bytes", ViperKey: "storage.max_storage_bytes",
		Description: "byte budget for each user's sessions file",
	},
	FlagMaxContextTokens: {
		Name: "max-context-tokens", ViperKey: "memory.max_context_tokens",
		Description: "token budget for the context window sent to the model",
	},
	FlagLTMProvider: {
		Name: "ltm-provider", ViperKey: "ltm.provider",
		Description: "long-term memory backend (sqlite, sqlitevec, postgres)",
	},
	FlagLTMTarget: {
		Name: "ltm-target", ViperKey: "ltm.target",
		Description: "long-term memory target (file path or connection string)",
	},
	FlagKafkaTopic: {
		Name: "kafka-topic", ViperKey: "eventstream.topic",
		Description: "Kafka topic for session persistence events",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
