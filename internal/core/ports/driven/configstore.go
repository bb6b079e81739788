package driven

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files) and type conversion.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetBool retrieves a boolean configuration value.
	// Returns false if key doesn't exist or isn't a boolean.
	GetBool(key string) bool

	// Set stores a configuration value.
	// The value is persisted immediately.
	Set(key string, value any) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}

// Well-known configuration keys.
const (
	// ConfigProposerAPIKey is the Edit Proposer API key.
	ConfigProposerAPIKey = "proposer.api_key"

	// ConfigProposerBaseURL overrides the Edit Proposer endpoint.
	ConfigProposerBaseURL = "proposer.base_url"

	// ConfigProposerModel selects the proposer model.
	ConfigProposerModel = "proposer.model"

	// ConfigSynthesizerAPIKey is the Image Synthesizer API key.
	ConfigSynthesizerAPIKey = "synthesizer.api_key"

	// ConfigSynthesizerBaseURL overrides the Image Synthesizer endpoint.
	ConfigSynthesizerBaseURL = "synthesizer.base_url"

	// ConfigSynthesizerModel selects the synthesis model.
	ConfigSynthesizerModel = "synthesizer.model"

	// ConfigThumbnailPersist enables the SQLite thumbnail store
	// instead of the in-memory LRU.
	ConfigThumbnailPersist = "thumbnails.persist"
)
