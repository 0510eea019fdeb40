// Package server wires and runs the application's HTTP transport.
//
// It provides lifecycle orchestration for the inbound server, including
// startup, signal handling, and graceful shutdown.
package server
