package utils

// Version is the service version reported by /health and `agentsvc version`.
// Release builds override it with -ldflags "-X agentsvc/internal/utils.Version=...".
var Version = "1.0.0"
