// Package billno generates pseudo-random 6-digit bill numbers. Numbers are
// not reserved at generation time; uniqueness is enforced by the store when
// the bill is saved, and a collision is handled by regenerating.
package billno

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	min  = 100000
	span = 900000
)

func New() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%06d", min+time.Now().UnixNano()%span)
	}
	n := binary.BigEndian.Uint64(buf) % span
	return fmt.Sprintf("%06d", min+int64(n))
}
