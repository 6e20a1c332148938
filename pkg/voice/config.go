package voice

import "time"

// Config holds the tunable parameters for a voice pipeline session.
type Config struct {
	// APIKey authenticates against the model provider.
	APIKey string

	// Model is the realtime model name. Empty selects the default.
	Model string

	// SystemPrompt is the persona and behavior instruction for the model.
	SystemPrompt string

	// VoiceName selects the synthesized voice. Empty selects the default.
	VoiceName string

	// Temperature controls response randomness (default 0.3, matching a
	// receptionist that should stay on script).
	Temperature float64

	// ToolTimeout bounds each tool handler execution.
	ToolTimeout time.Duration

	Debug bool
}

// DefaultConfig returns a Config with defaults for Gemini Live.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.3,
		ToolTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
