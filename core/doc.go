// Package core defines the shared contracts of the MineWatch system: the
// message and topic model carried by the bus, the agent lifecycle interface,
// the incident record that flows through the verification workflows, and the
// capability interfaces (search, fetch, extraction, persistence, retrieval,
// generation) that concrete packages implement. Core contains no I/O of its
// own; every other package depends on it and not vice versa.
package core
