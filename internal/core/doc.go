// Package core provides the course reconciliation logic shared by the
// CourseHub server and the coursectl CLI.
//
// The package is independent of any transport. It talks to courses only
// through the [CourseService] interface, which is implemented over HTTP by
// the client package and over PostgreSQL by the store package.
//
// # Workflow
//
// A reconciliation run has three steps:
//
//  1. [ParseCSV] turns an uploaded course list into normalized records.
//     Structural problems yield a [ValidationError]; rows missing a code or
//     name yield [RowErrors] and nothing proceeds.
//  2. [Analyze] compares the records with a fresh [Snapshot] and sorts them
//     into missing, name conflicts and unchanged.
//  3. [Executor.Run] creates every missing course, then renames every
//     conflicting one, one call at a time, reporting progress after each.
//
// [Workflow] wires the three steps together for callers that only need
// Prepare and Execute. [SyncService] runs the same workflow as background
// jobs with progress subscriptions for the HTTP server.
//
// # Error Handling
//
// Technical errors are mapped to admin-facing messages using [MapError].
// Each category has a code prefix (DB, VAL, FILE, SYNC, AUTH, RATE) so
// support can find the cause quickly.
package core
