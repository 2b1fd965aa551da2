// Package manager owns the single live connection to the network and runs
// the connection lifecycle state machine.
//
// # States
//
//	initializing → connecting → {scanning | pairing} → connected
//
// plus reconnecting, logged_out, error and disconnected. Closure causes are
// classified: an authoritative logout wipes the session store and begins a
// fresh pairing flow; anything else reconnects with backoff and the session
// intact.
//
// # Concurrency
//
// All transitions run on a single event loop (Run). External operations
// (Pair, Reset) are enqueued as ops; wire events and timer firings arrive on
// the same loop channel. Every scheduled timer and pumped wire event carries
// the epoch current when it was scheduled and is dropped if a superseding
// operation has bumped the epoch since — a stale retry can never resurrect a
// released connection. HTTP readers never touch the loop; they read a
// mutex-guarded snapshot.
package manager
