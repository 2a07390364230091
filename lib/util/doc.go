// Package util provides small helpers shared by the sender pool and the
// command-line tools: key hashing for sender routing and summary statistics
// over per-sender counters.
package util
