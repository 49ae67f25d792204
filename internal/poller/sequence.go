// internal/poller/sequence.go
package poller

import "sync"

// A read result is applied only if no newer read of the same group and
// kind has already been applied. Responses can land out of order when
// cycles overlap.

type seqKey struct {
	group int
	kind  Kind
}

type sequence struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

func (p *Poller) sequence(group int, kind Kind) *sequence {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()

	k := seqKey{group: group, kind: kind}
	s, ok := p.seqs[k]
	if !ok {
		s = &sequence{}
		p.seqs[k] = s
	}
	return s
}

// issue returns the sequence number of a new request.
func (s *sequence) issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// commit runs apply if n is newer than the last applied request.
// The check and apply are atomic with respect to other commits.
func (s *sequence) commit(n uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= s.applied {
		return false
	}
	s.applied = n
	apply()
	return true
}
