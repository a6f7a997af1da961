package transport

import "io"

// progressReader reports percent ticks while the request body is consumed.
// Ticks are emitted only when the integer percent advances, so a slow reader
// never floods the queue with duplicate updates.
type progressReader struct {
	source   io.Reader
	total    int64
	read     int64
	lastPct  int
	progress ProgressFunc
}

func newProgressReader(source io.Reader, total int64, progress ProgressFunc) io.Reader {
	if progress == nil || total <= 0 {
		return source
	}
	return &progressReader{source: source, total: total, lastPct: -1, progress: progress}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.source.Read(p)
	if n > 0 {
		r.read += int64(n)
		pct := int(r.read * 100 / r.total)
		if pct > 100 {
			pct = 100
		}
		if pct > r.lastPct {
			r.lastPct = pct
			r.progress(pct)
		}
	}
	return n, err
}
