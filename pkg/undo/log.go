package undo

import (
	"math"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/logging"
)

// Log is the ordered history of undo quanta for one engine.
// It is not safe for concurrent use.
type Log struct {
	quanta           []*Quantum
	lastUndoToken    int64
	lastReleaseToken int64
}

// NewLog creates an empty undo log.
func NewLog() *Log {
	return &Log{lastUndoToken: math.MinInt64, lastReleaseToken: math.MinInt64}
}

// Generate opens a new quantum. The token must be greater than every token
// previously generated, released or undone.
func (l *Log) Generate(token int64) (*Quantum, error) {
	if token <= l.lastUndoToken || token <= l.lastReleaseToken ||
		(len(l.quanta) > 0 && token <= l.quanta[len(l.quanta)-1].token) {
		return nil, dberror.New(dberror.ErrCategoryFatal, dberror.CodeNonMonotonicUndoToken,
			"undo token is not greater than the previous one").
			WithDetail("token %d, last undone %d, last released %d", token, l.lastUndoToken, l.lastReleaseToken).
			At("Generate", "UndoLog")
	}
	q := &Quantum{token: token}
	l.quanta = append(l.quanta, q)
	return q, nil
}

// Release discards every quantum with a token at or below token and returns
// how many were released.
func (l *Log) Release(token int64) int {
	n := 0
	for n < len(l.quanta) && l.quanta[n].token <= token {
		l.quanta[n].release()
		l.quanta[n] = nil
		n++
	}
	l.quanta = l.quanta[n:]
	if token > l.lastReleaseToken {
		l.lastReleaseToken = token
	}
	if n > 0 {
		logging.WithUndoToken(token).Debug("undo quanta released", "count", n)
	}
	return n
}

// Undo replays and discards every quantum with a token at or above token,
// newest first, and returns how many were undone. A replay failure is fatal:
// the failing quantum and everything older stay in the log.
func (l *Log) Undo(token int64) (int, error) {
	n := 0
	for len(l.quanta) > 0 {
		last := l.quanta[len(l.quanta)-1]
		if last.token < token {
			break
		}
		if err := last.undo(); err != nil {
			logging.WithUndoToken(last.token).Error("undo replay failed", "error", err)
			return n, err
		}
		l.quanta[len(l.quanta)-1] = nil
		l.quanta = l.quanta[:len(l.quanta)-1]
		n++
	}
	if token > l.lastUndoToken {
		l.lastUndoToken = token
	}
	if n > 0 {
		logging.WithUndoToken(token).Debug("undo quanta rolled back", "count", n)
	}
	return n, nil
}

// Contains reports whether a quantum with the given token is still held.
func (l *Log) Contains(token int64) bool {
	for _, q := range l.quanta {
		if q.token == token {
			return true
		}
	}
	return false
}

// Size is the number of quanta held.
func (l *Log) Size() int { return len(l.quanta) }

// Tokens lists the held tokens, oldest first.
func (l *Log) Tokens() []int64 {
	out := make([]int64, len(l.quanta))
	for i, q := range l.quanta {
		out[i] = q.token
	}
	return out
}

// Clear drops all history without applying it and resets token tracking.
func (l *Log) Clear() {
	for _, q := range l.quanta {
		q.release()
	}
	l.quanta = nil
	l.lastUndoToken = math.MinInt64
	l.lastReleaseToken = math.MinInt64
}
