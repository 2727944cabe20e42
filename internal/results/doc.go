// Package results collects terminal job outcomes and exposes them to the
// caller.
//
// Deliver never waits on a consumer: outcomes are appended to an in-memory
// buffer under a short critical section. Callers read them back in delivery
// order with Next, look one up with Outcome, or take a snapshot with
// Outcomes. Observers such as the history ledger and push notifications run on
// a dispatcher goroutine so a slow observer never stalls a pipeline.
package results
