// Package ledger persists the download history that makes sync passes
// idempotent.
//
// Every video ever considered for download is recorded as one row keyed by
// (source_id, video_id). Records move forward through
// pending -> downloading -> completed|failed; a failed record may return to
// downloading until its attempt count reaches MaxAttempts. Records are never
// deleted by sync passes, so the store doubles as a permanent dedup ledger.
//
// A process crash between BeginAttempt and Complete/Fail leaves the row in
// downloading; the next pass plans such rows as retries. Mutual exclusion for
// concurrent attempts on the same key is enforced with an in-process claim
// table: the losing caller receives ErrConcurrentAttempt.
package ledger
