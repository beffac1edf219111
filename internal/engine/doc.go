// Package engine implements the resumable batch execution loop.
//
// ARCHITECTURE:
//
// Execute walks the input rows of a Batch strictly in order, one at a time.
// For each row it decides, against the result store, whether to run the
// row's command:
//
//  1. Blank command: recorded as "empty", never executed.
//  2. Stored result is "success": skipped, the stored row is left untouched.
//  3. Otherwise (unseen or previously "error"): the command runs through the
//     Invoker with the fixed timeout and the outcome is upserted.
//
// The invoker call is the only blocking point. A failing row never stops the
// batch; its error text becomes the row's output. Only batch validation
// (BatchError) or a cancelled context end Execute early.
//
// All run state lives in the Batch value handed to Execute; the Engine only
// holds collaborators (invoker, progress writer, journal, clock).
//
// Logical clock:
// Every evaluated row is stamped with seq from Clock.Next() before it is
// reported to the Journal. Never wall-clock time for ordering.
package engine
