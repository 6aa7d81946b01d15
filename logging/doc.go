// Package logging provides a minimal logging interface and adapters for the
// procurement engine.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the workflow engine and agents use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - ProcureLogger with contextual run/agent helpers and domain specific
//     logging for stages, negotiations and discovery
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh := procuremesh.New(func(o *procuremesh.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
