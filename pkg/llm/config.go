package llm

import "time"

const (
	DefaultModel           = "gpt-3.5-turbo"
	DefaultMaxAttempts     = 3
	DefaultAzureAPIVersion = "2024-06-01"
	defaultHTTPTimeout     = 60 * time.Second
)

// Config holds settings shared by every call a Completer makes.
// Zero values are replaced with defaults by NewCompleter.
type Config struct {
	// DefaultModel is used when a call does not pass WithModel (default: "gpt-3.5-turbo")
	DefaultModel string

	// MaxAttempts bounds provider attempts per call, the first included (default: 3)
	MaxAttempts int

	// RetryDelay is the fixed wait between attempts (default: none)
	RetryDelay time.Duration

	// BaseURL overrides the OpenAI endpoint for the openai and custom_url backends
	BaseURL string

	// AzureEndpoint is the Azure OpenAI resource URL, required for the azure backend
	AzureEndpoint string

	// AzureAPIVersion is sent as api-version on Azure requests (default: "2024-06-01")
	AzureAPIVersion string

	// AzureDeployments maps model names to Azure deployment names.
	// Models without an entry use the provider's default mapping.
	AzureDeployments map[string]string

	// HTTPTimeout bounds a single provider request (default: 60s)
	HTTPTimeout time.Duration

	// RequestsPerSecond rate-limits attempts when positive
	RequestsPerSecond float64
}

func (c Config) withDefaults() Config {
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.AzureAPIVersion == "" {
		c.AzureAPIVersion = DefaultAzureAPIVersion
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	return c
}
