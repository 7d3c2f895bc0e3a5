package ping

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DomainEntry prefixes entry hashes. Version suffix enables future algorithm migration.
const DomainEntry = "tagtime/entry/v1"

// EntryID computes a content-addressed ID for an entry.
// Format: SHA256(domain + 0x00 + unix(8 bytes BE) + outcome + 0x00 + folded tags joined by 0x00)
//
// The ID is stable across processes and machines, so an external service can use
// it to de-duplicate resubmitted entries.
func EntryID(e Entry) string {
	h := sha256.New()
	h.Write([]byte(DomainEntry))
	h.Write([]byte{0x00})

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(e.ScheduledTime.Unix()))
	h.Write(ts[:])
	h.Write([]byte(e.Outcome.String()))
	for _, tag := range e.Tags {
		h.Write([]byte{0x00})
		h.Write([]byte(Fold(tag)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
