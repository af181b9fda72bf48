package client

// Defines structs describing netconf configuration.

// Config defines properties that configure netconf session behaviour.
type Config struct {
	// Defines the time in seconds that the client will wait to receive a hello message from the server.
	SetupTimeoutSecs int `yaml:"setup-timeout"`

	// Defines the time in seconds that Execute will wait for the reply to a request.
	RequestTimeoutSecs int `yaml:"timeout"`

	// DisableChunkedCodec stops the client advertising base:1.1, so end-of-message framing is always used.
	DisableChunkedCodec bool `yaml:"disable-chunked-codec"`
}

// DefaultConfig holds the values applied to any unspecified Config field.
var DefaultConfig = &Config{
	SetupTimeoutSecs:   5,
	RequestTimeoutSecs: 60,
}
