package audit

import (
	"fmt"

	"mercator-hq/docguard/pkg/model"
)

// Verify checks a single run's entries, in sequence order, for gaps,
// broken links and altered content.
func Verify(entries []*model.AuditEntry) error {
	var prev *model.AuditEntry
	for i, e := range entries {
		want := int64(i + 1)
		if prev != nil && e.RunID != prev.RunID {
			return &IntegrityError{RunID: e.RunID, Sequence: e.Sequence, Reason: fmt.Sprintf("entry belongs to run %s, expected %s", e.RunID, prev.RunID)}
		}
		if e.Sequence != want {
			return &IntegrityError{RunID: e.RunID, Sequence: e.Sequence, Reason: fmt.Sprintf("expected sequence %d", want)}
		}
		prevHash := ""
		if prev != nil {
			prevHash = prev.Hash
		}
		if e.PrevHash != prevHash {
			return &IntegrityError{RunID: e.RunID, Sequence: e.Sequence, Reason: "prev_hash does not match the previous entry"}
		}
		if ChainHash(e) != e.Hash {
			return &IntegrityError{RunID: e.RunID, Sequence: e.Sequence, Reason: "hash does not match entry content"}
		}
		prev = e
	}
	return nil
}
