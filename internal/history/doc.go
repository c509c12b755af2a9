// Package history turns a printer's Moonraker job log into statistics.
//
// Scan pages through /server/history/list newest first and sorts every job
// into one of four outcome buckets:
//
//	completed   status "completed"
//	error       status "error"
//	cancelled   cancelled, canceled, interrupted, server_exit,
//	            klippy_shutdown, shutdown, aborted
//	other       anything else (including "in_progress")
//
// Each job counts its print_duration (total_duration when the printer did
// not record one) towards its bucket and towards the calendar month it ended
// in, labelled like "Jan 2026" in local time.
//
// FindMatchingJob uses the same paging to locate the job behind a duration
// reported by /server/history/totals.
package history
