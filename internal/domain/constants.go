package domain

const (
	DefaultConnectTimeoutSeconds = 30
	DefaultExecuteTimeoutSeconds = 60
	DefaultSearchLimit           = 10
	MinSearchLimit               = 1
	MaxSearchLimit               = 50
	DefaultMaxTools              = 10
	FallbackEmbeddingDims        = 256
	DefaultObservabilityListen   = "127.0.0.1:9090"
	DefaultGatingPolicy          = "popular"
	DefaultEmbedTimeoutSeconds   = 10
)
