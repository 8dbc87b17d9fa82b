// Package substitution assigns substitute teachers to the periods vacated by
// absent teachers.
//
// A run is built from per-run objects: a Directory resolving names to roster
// identities, a ScheduleIndex over the normalized timetable, a Tracker holding
// same-day workload, a Selector ranking candidates and a Recorder capturing
// every decision. Engine wires them together behind the Store persistence
// interface and never returns an error to its caller; everything ends up in a
// Result.
package substitution
