// Package syncer executes sync passes: it lists each configured source,
// plans downloads against the tracking ledger, and drives the fetch tool.
// A pass is resumable by construction; every item transition is persisted
// before and after the external download runs, so an interrupted pass is
// picked up cleanly by the next one.
package syncer
