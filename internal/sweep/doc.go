// Package sweep drives a resumable parameter sweep.
//
// A Scheduler walks every (combination, repeat index) pair of the grid in a
// fixed order and hands each one to a TrialRunner. The TrialRunner reconciles
// the trial's persisted state with the goal "this trial is complete":
//
//	Complete   -> nothing to do
//	TimedOut   -> archive the attempt, then run fresh
//	Incomplete -> discard the leftovers, then run fresh
//	Absent     -> run fresh
//
// A fresh run that times out is marked and retried in the same call until the
// attempt budget is spent, at which point the whole sweep aborts with a
// *RetriesExhaustedError. Because all state lives on disk, running the same
// sweep again continues where the previous invocation stopped.
package sweep
