// Package veo drives the asynchronous video generation endpoint: it submits
// long-running jobs, polls them on a fixed cadence until they finish, and
// turns the heterogeneous terminal payload into a typed Outcome.
//
// Responses are decoded once at the HTTP boundary. Callers switch on
// Outcome.Kind instead of probing optional JSON fields, and a safety-filtered
// job is an ordinary outcome rather than an error.
package veo
