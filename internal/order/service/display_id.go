package service

import (
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	displayIDPrefix      = "PL"
	displayIDSuffixLen   = 6
	maxDisplayIDAttempts = 3
)

// newDisplayID renders PL-YYMMDD-XXXXXX. The suffix is the tail of a ULID,
// which is Crockford base32 drawn from entropy.
func newDisplayID(now time.Time, entropy io.Reader) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	encoded := id.String()
	return displayIDPrefix + "-" + now.UTC().Format("060102") + "-" + encoded[len(encoded)-displayIDSuffixLen:], nil
}
