// Package protocol groups the exprd wire layers.
//
// Ownership boundary:
// - frame: length-prefixed framing and payload limits
// - session: transport policy, TLS material and dialing
package protocol
