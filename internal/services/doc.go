// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, beat IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from the
//     remote platform, external tools, and local I/O classify uniformly
//     (beat-local vs fatal to the run).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
