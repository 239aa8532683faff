package testfixtures

import (
	"fmt"
	"sync"
)

// Sequence produces deterministic tokens such as ETags or session tokens and
// remembers what it handed out.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewSequence yields prefix-1, prefix-2 and so on. An empty prefix uses "tok".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "tok"
	}
	return &Sequence{prefix: prefix}
}

// Next returns the next token.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := fmt.Sprintf("%s-%d", s.prefix, len(s.issued)+1)
	s.issued = append(s.issued, token)
	return token
}

// Func exposes Next for dependency injection. A nil sequence returns nil so
// that services fall back to their production generator.
func (s *Sequence) Func() func() string {
	if s == nil {
		return nil
	}
	return s.Next
}

// Last returns the most recent token, or "" before the first call.
func (s *Sequence) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.issued) == 0 {
		return ""
	}
	return s.issued[len(s.issued)-1]
}

// Issued returns a copy of every token handed out so far.
func (s *Sequence) Issued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.issued...)
}
