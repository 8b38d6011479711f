package undo

// SentinelToken is the token of the sentinel quantum.
const SentinelToken int64 = -1

// Quantum collects the undo records of one transaction boundary.
type Quantum struct {
	token    int64
	records  []Record
	sentinel bool
}

// NewSentinel returns a quantum that drops every record it is given.
func NewSentinel() *Quantum {
	return &Quantum{token: SentinelToken, sentinel: true}
}

func (q *Quantum) Token() int64 { return q.token }

// IsSentinel reports whether q discards its records.
func (q *Quantum) IsSentinel() bool { return q.sentinel }

// Len is the number of retained records.
func (q *Quantum) Len() int { return len(q.records) }

// Record registers the inverse of a mutation.
func (q *Quantum) Record(r Record) {
	if q.sentinel {
		return
	}
	q.records = append(q.records, r)
}

// undo replays the records newest first. On failure the records that were
// not yet applied stay in the quantum.
func (q *Quantum) undo() error {
	for i := len(q.records) - 1; i >= 0; i-- {
		if err := q.records[i].Apply(); err != nil {
			q.records = q.records[:i+1]
			return err
		}
	}
	q.records = nil
	return nil
}

func (q *Quantum) release() {
	q.records = nil
}
