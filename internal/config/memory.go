package config

// MemoryConfig configures the per-user memory block.
type MemoryConfig struct {
	// MaxFormattedLength caps the memory block injected into prompts (characters).
	MaxFormattedLength int `yaml:"max_formatted_length"`

	// MaxRecordsPerUser caps stored memories per user.
	MaxRecordsPerUser int `yaml:"max_records_per_user"`
}
