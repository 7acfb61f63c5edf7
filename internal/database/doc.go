// Package database provides connection pool management for the dashboard's
// PostgreSQL instance.
//
// The relay itself persists nothing. The pool exists for the token verifier and
// ownership lookups, and for the health endpoint's liveness ping.
package database
