// Command qupload uploads Q-methodology stimulus files to a study backend.
// Files are validated against the configured policy, queued, and transferred
// with a bounded number of concurrent uploads; outcomes land in a local
// history ledger.
package main
