// Package transport moves stimulus files to the study backend. The Adapter
// interface is the seam between the upload queue and the wire protocol; the
// HTTP client behind it streams multipart bodies and classifies failures so
// the caller can tell retryable faults from hard rejections.
package transport
