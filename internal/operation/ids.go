package operation

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns "<kind>-<site>-<unixMillis>-<entropy>". The ULID random part
// keeps ids unique when two operations start in the same millisecond.
func NewID(kind, site string, now time.Time) string {
	u := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	entropy := strings.ToLower(u.String()[10:])
	if site == "" {
		return fmt.Sprintf("%s-%d-%s", kind, now.UnixMilli(), entropy)
	}
	return fmt.Sprintf("%s-%s-%d-%s", kind, site, now.UnixMilli(), entropy)
}
