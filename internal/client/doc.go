// Package client assembles the sync engine into a runnable headless
// application: it restores the persisted session, starts the orchestrator
// and keeps the engine alive until the process is told to stop.
package client
