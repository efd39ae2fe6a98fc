package config

// BackendConfig contains the hosted auth backend endpoint configuration.
// Both URL and APIKey are required for hosted mode; when either is absent
// the portal fails closed (no session available) instead of crashing.
type BackendConfig struct {
	// URL is the origin of the hosted backend (e.g. "https://club.backend.example").
	URL string `env:"URL"`

	// APIKey is the public (anon) API key sent with every request.
	APIKey string `env:"API_KEY"`
}

// Configured reports whether hosted mode has everything it needs.
func (b BackendConfig) Configured() bool {
	return b.URL != "" && b.APIKey != ""
}
