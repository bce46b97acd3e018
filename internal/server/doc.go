// Package server runs the framed evaluation service.
//
// Ownership boundary:
// - listener setup (TCP or TLS) and accept loop
// - one worker goroutine per connection, optionally bounded by MaxConns
// - read frame -> evaluate -> write response, in order, per connection
// - admin HTTP surface (health, readiness, metrics)
//
// Workers share no evaluation state. A framing or transport failure ends only
// the connection it occurred on; evaluation errors are answered with an ERR
// response and the connection keeps serving.
package server
