// Package trajectory owns the lifecycle of dispatched command sequences.
//
// A trajectory is created in progress when the HTTP layer dispatches a
// command string to a rover, and reaches exactly one terminal state: either
// completed (the rover's execution report arrived on the bus) or cancelled
// (an operator cancelled it over HTTP). Those two writers race, so the
// terminal transition is a compare-and-set guarded by a per-trajectory lock
// stripe and a conditional UPDATE in the repository.
//
// Execution reports are delivered at least once by the bus; applying a
// report to an already-terminal trajectory is a no-op, never corruption.
package trajectory
