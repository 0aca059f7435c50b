package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// Console output prefixes. Exactly one line with one of them is printed per run.
const (
	ResultPrefix = "Classification Result:"
	ErrorPrefix  = "Error:"
)

// HTTP headers and content types
const (
	ContentTypeJSON = "application/json"
)

// MIME types
const (
	MimeImagePNG = "image/png"
)

// Environment variables
const (
	EnvConfigPath      = "WASTEWISE_CONFIG"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY" // #nosec G101 - env var name, not a credential
	EnvGeminiAPIKey    = "GEMINI_API_KEY" // #nosec G101 - env var name, not a credential
	EnvCloudProject    = "GOOGLE_CLOUD_PROJECT"
	EnvCloudLocation   = "GOOGLE_CLOUD_LOCATION"
)

// Defaults
const (
	DefaultConfigFile    = "config.yaml"
	DefaultDotEnvFile    = ".env"
	DefaultImagePath     = "uploads/battery_93.jpg"
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultCloudLocation = "us-central1"
)

// LLM provider names
const (
	ProviderGemini  = "gemini"
	ProviderAIProxy = "aiproxy"
	ProviderMock    = "mock"
)
