// Package calc renders evaluation outcomes as protocol response lines.
//
// A response is "OK <value>\n" on success or "ERR <reason>\n" on failure.
package calc
