// Package types defines the shared data model for the orbitdash resource
// layer: cached artifact entries, the storage tier contract, admission
// results, and the upstream fetcher collaborator interface.
//
// The package has no dependencies on the concrete tier or governor
// implementations so that collaborators can consume the contracts without
// importing the machinery behind them.
package types
