// Package cancel implements cooperative cancellation for reparse cycles.
//
// A Signal is owned by whoever may want to abort work; the engine only
// observes it. Observation goes through a Checker, which polls according to
// a Policy so that small workloads pay nothing and large ones pay one atomic
// load per batch.
package cancel
