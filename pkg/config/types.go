package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent reqvibe configuration stored as
// config.toml in the .reqvibe/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	User        UserConfig        `toml:"user"`
	LLM         LLMConfig         `toml:"llm"`
	Storage     StorageConfig     `toml:"storage"`
	Memory      MemoryConfig      `toml:"memory"`
	LTM         LTMConfig         `toml:"ltm"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// UserConfig identifies whose conversation store the CLI operates on.
type UserConfig struct {
	Name string `toml:"name,omitempty"`
}

// LLMConfig holds the chat-completions provider settings.
type LLMConfig struct {
	BaseURL        string `toml:"base_url,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	Model          string `toml:"model,omitempty"`
	TimeoutSeconds uint   `toml:"timeout_seconds,omitempty"`
}

// StorageConfig holds the conversation store limits.
type StorageConfig struct {
	BaseDir          string `toml:"base_dir,omitempty"`
	MaxConversations uint   `toml:"max_conversations,omitempty"`
	MaxStorageBytes  uint   `toml:"max_storage_bytes,omitempty"`
}

// MemoryConfig holds short-term memory settings.
type MemoryConfig struct {
	MaxContextTokens uint `toml:"max_context_tokens,omitempty"`
}

// LTMConfig holds long-term requirement store settings.
type LTMConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	Enabled    bool   `toml:"enabled,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig holds the Kafka persistence-event settings. An empty
// brokers list disables publishing.
type EventStreamConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(get func(c *Config) uint, set func(c *Config, n uint), name string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"user.name": {
		get: func(c *Config) string { return c.User.Name },
		set: func(c *Config, v string) error { c.User.Name = v; return nil },
	},
	"llm.base_url": {
		get: func(c *Config) string { return c.LLM.BaseURL },
		set: func(c *Config, v string) error { c.LLM.BaseURL = v; return nil },
	},
	"llm.api_key": {
		get: func(c *Config) string { return c.LLM.APIKey },
		set: func(c *Config, v string) error { c.LLM.APIKey = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.timeout_seconds": uintKey(
		func(c *Config) uint { return c.LLM.TimeoutSeconds },
		func(c *Config, n uint) { c.LLM.TimeoutSeconds = n },
		"llm.timeout_seconds",
	),
	"storage.base_dir": {
		get: func(c *Config) string { return c.Storage.BaseDir },
		set: func(c *Config, v string) error { c.Storage.BaseDir = v; return nil },
	},
	"storage.max_conversations": uintKey(
		func(c *Config) uint { return c.Storage.MaxConversations },
		func(c *Config, n uint) { c.Storage.MaxConversations = n },
		"storage.max_conversations",
	),
	"storage.max_storage_bytes": uintKey(
		func(c *Config) uint { return c.Storage.MaxStorageBytes },
		func(c *Config, n uint) { c.Storage.MaxStorageBytes = n },
		"storage.max_storage_bytes",
	),
	"memory.max_context_tokens": uintKey(
		func(c *Config) uint { return c.Memory.MaxContextTokens },
		func(c *Config, n uint) { c.Memory.MaxContextTokens = n },
		"memory.max_context_tokens",
	),
	"ltm.provider": {
		get: func(c *Config) string { return c.LTM.Provider },
		set: func(c *Config, v string) error { c.LTM.Provider = v; return nil },
	},
	"ltm.target": {
		get: func(c *Config) string { return c.LTM.Target },
		set: func(c *Config, v string) error { c.LTM.Target = v; return nil },
	},
	"ltm.dimensions": uintKey(
		func(c *Config) uint { return c.LTM.Dimensions },
		func(c *Config, n uint) { c.LTM.Dimensions = n },
		"ltm.dimensions",
	),
	"ltm.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.LTM.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for ltm.enabled: %w", err)
			}
			c.LTM.Enabled = b
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}
