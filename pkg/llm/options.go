package llm

// CallOption overrides per-call parameters.
type CallOption func(*callOptions)

type callOptions struct {
	model        string
	backend      Backend
	jsonResponse bool
}

// WithModel selects the model for a call. Defaults to Config.DefaultModel.
func WithModel(model string) CallOption {
	return func(o *callOptions) {
		o.model = model
	}
}

// WithBackend selects the backend for a call. Defaults to BackendOpenAI.
func WithBackend(backend Backend) CallOption {
	return func(o *callOptions) {
		o.backend = backend
	}
}

// WithJSONResponse requests JSON-object output from GetChatCompletion.
// Only BackendOpenAI honors it; other backends and parsed completions ignore it.
func WithJSONResponse(enabled bool) CallOption {
	return func(o *callOptions) {
		o.jsonResponse = enabled
	}
}

func (c *Completer) resolveOptions(opts []CallOption) callOptions {
	o := callOptions{
		model:   c.config.DefaultModel,
		backend: BackendOpenAI,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
