package recovery

import (
	"github.com/renderguard/renderguard/internal/core/domain"
)

// Journal is a bounded rolling log of handled errors. Once capacity is
// reached the oldest record is evicted. Not goroutine-safe on its own;
// the Handler serializes access.
type Journal struct {
	capacity int
	records  []domain.ErrorRecord
}

// NewJournal creates a journal holding at most capacity records.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 100
	}
	return &Journal{
		capacity: capacity,
		records:  make([]domain.ErrorRecord, 0, capacity),
	}
}

// Append records rec, evicting the oldest entry when full.
func (j *Journal) Append(rec domain.ErrorRecord) {
	if len(j.records) >= j.capacity {
		// Shift elements left, drop oldest
		copy(j.records, j.records[1:])
		j.records[len(j.records)-1] = rec
		return
	}
	j.records = append(j.records, rec)
}

// Tail returns up to n most recent records, oldest first.
func (j *Journal) Tail(n int) []domain.ErrorRecord {
	if n <= 0 || n > len(j.records) {
		n = len(j.records)
	}
	out := make([]domain.ErrorRecord, n)
	copy(out, j.records[len(j.records)-n:])
	return out
}

// Len returns the number of retained records.
func (j *Journal) Len() int {
	return len(j.records)
}

// Reset drops all records.
func (j *Journal) Reset() {
	j.records = j.records[:0]
}
