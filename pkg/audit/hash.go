package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"mercator-hq/docguard/pkg/model"
)

// Seal links entry to prev (nil for the first entry of a run), setting
// Sequence, PrevHash and Hash.
func Seal(entry *model.AuditEntry, prev *model.AuditEntry) {
	entry.Sequence = 1
	entry.PrevHash = ""
	if prev != nil {
		entry.Sequence = prev.Sequence + 1
		entry.PrevHash = prev.Hash
	}
	entry.Hash = ChainHash(entry)
}

// ChainHash computes the hex SHA-256 of the entry's canonical form. The
// canonical form covers every field except Hash itself; Details are
// compacted so re-indented exports still verify.
func ChainHash(e *model.AuditEntry) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(e.EntryID)
	write(e.RunID)
	write(strconv.FormatInt(e.Sequence, 10))
	write(e.Timestamp.UTC().Format(time.RFC3339Nano))
	write(string(e.Action))
	write(e.Actor)
	write(compactDetails(e.Details))
	write(e.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func compactDetails(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
