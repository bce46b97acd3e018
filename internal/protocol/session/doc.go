// Package session owns client/server transport settings for framed
// connections.
//
// Ownership boundary:
// - connect/read/write timeouts
// - TLS/mTLS policy, validation, and tls.Config construction
// - dial retry backoff
package session
