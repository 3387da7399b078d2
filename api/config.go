package api

// Config holds the API server configuration.
type Config struct {
	// ListenAddr is the address the server listens on, e.g. ":8080".
	ListenAddr string

	// Model is the chat model used for /v1/chat requests that don't
	// name one.
	Model string

	// MaxContextTokens bounds the context window sent to the model.
	// Zero means the memory default.
	MaxContextTokens int
}
