package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Backend selects the credential and endpoint family for a call.
type Backend string

const (
	// BackendOpenAI is the standard OpenAI endpoint.
	BackendOpenAI Backend = "openai"

	// BackendAzure is an Azure OpenAI resource.
	BackendAzure Backend = "azure"

	// BackendCustomURL is an OpenAI-compatible endpoint at Config.BaseURL.
	// It resolves exactly like BackendOpenAI.
	BackendCustomURL Backend = "custom_url"
)

// ErrInvalidBackend is returned for a backend outside the supported set.
var ErrInvalidBackend = errors.New("invalid backend")

// ParseBackend validates s as a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendOpenAI, BackendAzure, BackendCustomURL:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q (must be one of %q, %q, %q)", ErrInvalidBackend, s,
			BackendOpenAI, BackendAzure, BackendCustomURL)
	}
}

// CredentialFunc builds a client handle from an API key and organization ID.
// It must not perform network I/O; authentication problems surface on the first call.
type CredentialFunc func(key, org string) (ChatClient, error)

// Resolver maps a backend to the credential function that serves it.
type Resolver struct {
	Standard   CredentialFunc
	Enterprise CredentialFunc
}

// NewResolver returns a Resolver using StandardCredentials and AzureCredentials for cfg.
func NewResolver(cfg Config) Resolver {
	cfg = cfg.withDefaults()
	return Resolver{
		Standard:   StandardCredentials(cfg),
		Enterprise: AzureCredentials(cfg),
	}
}

// Resolve returns a fresh client handle for backend. Unknown backends fail before
// either credential function is called.
func (r Resolver) Resolve(backend Backend, key, org string) (ChatClient, error) {
	var fn CredentialFunc
	switch backend {
	case BackendOpenAI, BackendCustomURL:
		fn = r.Standard
	case BackendAzure:
		fn = r.Enterprise
	default:
		_, err := ParseBackend(string(backend))
		return nil, err
	}

	if fn == nil {
		return nil, fmt.Errorf("no credential function configured for backend %q", backend)
	}
	client, err := fn(key, org)
	if err != nil {
		return nil, fmt.Errorf("resolve %s credentials: %w", backend, err)
	}
	return client, nil
}

// StandardCredentials builds clients for the OpenAI endpoint, or cfg.BaseURL when set.
func StandardCredentials(cfg Config) CredentialFunc {
	return func(key, org string) (ChatClient, error) {
		clientCfg := openai.DefaultConfig(key)
		clientCfg.OrgID = org
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
		return openai.NewClientWithConfig(clientCfg), nil
	}
}

// AzureCredentials builds clients for the Azure OpenAI resource at cfg.AzureEndpoint.
func AzureCredentials(cfg Config) CredentialFunc {
	return func(key, org string) (ChatClient, error) {
		if cfg.AzureEndpoint == "" {
			return nil, errors.New("azure endpoint is not configured (set AZURE_OPENAI_ENDPOINT)")
		}

		clientCfg := openai.DefaultAzureConfig(key, cfg.AzureEndpoint)
		clientCfg.OrgID = org
		if cfg.AzureAPIVersion != "" {
			clientCfg.APIVersion = cfg.AzureAPIVersion
		}
		if len(cfg.AzureDeployments) > 0 {
			fallback := clientCfg.AzureModelMapperFunc
			clientCfg.AzureModelMapperFunc = func(model string) string {
				if deployment, ok := cfg.AzureDeployments[model]; ok {
					return deployment
				}
				return fallback(model)
			}
		}
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
		return openai.NewClientWithConfig(clientCfg), nil
	}
}
