// Package snapshot persists still images captured at the moment of an
// interesting detection. Persistence failures are never fatal: the caller
// logs them and carries on without a snapshot reference.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store saves an encoded JPEG under a generated name.
type Store interface {
	// Save persists the image. The name becomes the snapshot reference
	// carried by the alert record on success.
	Save(ctx context.Context, name string, jpeg []byte) error
}

// Name builds the snapshot file name for a detection: camera id, capture
// timestamp, and class, e.g. "camfront_20260830_141530_knife.jpg".
func Name(cameraID string, t time.Time, class string) string {
	return fmt.Sprintf("cam%s_%s_%s.jpg",
		sanitize(cameraID), t.Format("20060102_150405"), sanitize(class))
}

// sanitize keeps names safe for file paths and object keys.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
