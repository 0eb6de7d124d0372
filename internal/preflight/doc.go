// Package preflight provides readiness checks for the external services,
// binaries and filesystem paths that reelgen depends on.
//
// These checks run in two contexts:
//   - The "reelgen run" command calls RunAll before generating anything.
//     A failed check aborts the run before any paid generation request.
//   - The "reelgen status" command uses RunAll, CheckSystemDeps and
//     CheckWorkspace to display overall health.
//
// Remote checks are gated by configuration: the platform check runs only
// when a project is configured and the story check only when an API key is set.
package preflight
