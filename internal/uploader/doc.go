// Package uploader coordinates the stimulus upload queue. The Manager owns
// admission: accepted files wait in FIFO order, at most the configured number
// of transfers run at once, and every vacated slot pulls the oldest pending
// task. Failed tasks stay in the queue for inspection and manual retry;
// transient faults can also be retried automatically within a configured
// budget.
package uploader
