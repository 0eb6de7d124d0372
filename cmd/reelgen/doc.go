// Package main hosts the reelgen CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into story, character,
// clip and stitch stages backed by the internal packages. It centralizes
// configuration resolution, logger construction and platform wiring so
// subcommands only describe which stages to run.
//
// Keep this package lean: new behaviour belongs in internal packages first
// and is surfaced here through commands or flags.
package main
