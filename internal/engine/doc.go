// Package engine runs rollcall's bulk operations.
//
// ARCHITECTURE:
//
// Every operation is one pass through a single pipeline:
//
//	Fetch -> Classify -> ConfirmationGate -> Execute -> Report
//
// The Orchestrator owns the pipeline. It is parameterized by a selector
// (which records to act on) and a mutation kind (delete or create), so the
// list, delete, add and import variants share one implementation.
//
// The Executor owns remote mutations. Tasks run strictly one at a time:
//   - a rate.Limiter spaces successive calls (proactive pacing)
//   - a throttled call waits for the service's retry-after hint and is
//     retried by backoff.Retry up to the attempt limit (reactive backoff)
//   - any other failure is terminal for that task only
//
// All waiting goes through Clock, so tests drive retries and pacing with a
// fake clock and never sleep.
//
// SAFETY:
//
// delete-all never deletes the whole roster; the last record in fetch order
// is preserved. No mutating batch starts without an affirmative answer from
// the Confirmer. Cancellation is honored between tasks, never mid-task, and
// an interrupted batch still yields a Report of what was attempted.
package engine
