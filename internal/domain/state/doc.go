// Package state persists widget placement and running state across restarts.
//
// Position, size and permission updates are coalesced per instance: the first
// update schedules a single write Debounce later and further updates only
// replace the pending value. Closing an instance cancels the pending write and
// flushes the final record at once, so a debounced write never lands after a
// close write.
//
// On startup RestoreAll relaunches every record still flagged running, once,
// when the autoRestore setting allows it.
package state
