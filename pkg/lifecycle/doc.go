// Package lifecycle owns the server core and its two background tasks.
//
// ServerCore aggregates the item store, the condition model and the server
// state, and serves client reads, writes and acknowledgments. The Controller
// runs the population plan and the refresh engine concurrently, publishes
// the server state, and shuts both tasks down within bounded grace periods.
package lifecycle
