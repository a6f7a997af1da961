package policy

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"qupload/internal/config"
	"qupload/internal/queue"
	"qupload/internal/services"
)

// Gate rejects candidate files before they ever enter the queue. Validation
// runs exactly once, pre-enqueue; retries do not pass through it again.
type Gate struct {
	acceptedTypes map[string]struct{}
	maxFileSize   int64
}

// NewGate builds a validation gate from the policy configuration. An empty
// accepted-types list admits every MIME type; a zero size limit disables the
// size check.
func NewGate(pol config.Policy) *Gate {
	accepted := make(map[string]struct{}, len(pol.AcceptedTypes))
	for _, entry := range pol.AcceptedTypes {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		accepted[entry] = struct{}{}
	}
	maxSize := int64(0)
	if pol.MaxFileSizeMB > 0 {
		maxSize = pol.MaxFileSizeMB * 1024 * 1024
	}
	return &Gate{acceptedTypes: accepted, maxFileSize: maxSize}
}

// Validate checks a candidate file against the policy. The returned error
// carries the validation marker and a message suitable for direct display.
func (g *Gate) Validate(file queue.FileRef) error {
	mime := strings.ToLower(strings.TrimSpace(file.MIME))
	if len(g.acceptedTypes) > 0 {
		if _, ok := g.acceptedTypes[mime]; !ok {
			return services.Wrap(services.ErrValidation, "policy", "validate",
				fmt.Sprintf("File type not allowed: %s", displayMIME(mime)), nil)
		}
	}
	if g.maxFileSize > 0 && file.Size > g.maxFileSize {
		return services.Wrap(services.ErrValidation, "policy", "validate",
			fmt.Sprintf("File size exceeds limit of %s", humanize.IBytes(uint64(g.maxFileSize))), nil)
	}
	return nil
}

func displayMIME(mime string) string {
	if mime == "" {
		return "unknown"
	}
	return mime
}
