package http

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"sitepay/internal/cache"
)

const (
	submissionTTL      = 10 * time.Minute
	submissionCapacity = 1024
	maxTokenLength     = 64
)

type submission struct {
	id   string
	done bool
}

// submissions remembers form tokens so a repeated post of the same payment
// form creates one record. A token is pending while its write runs and maps
// to the saved id afterwards.
type submissions struct {
	mu   sync.Mutex
	seen *cache.LRUCache[string, submission]
}

func newSubmissions() *submissions {
	return &submissions{seen: cache.NewLRUCache[string, submission](submissionCapacity, submissionTTL)}
}

func newSubmissionToken() string {
	return uuid.NewString()
}

// begin claims token. When it was claimed before it returns the earlier
// submission and false.
func (s *submissions) begin(token string) (submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.seen.Get(token); ok {
		return prev, false
	}
	s.seen.Set(token, submission{})
	return submission{}, true
}

func (s *submissions) finish(token, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen.Set(token, submission{id: id, done: true})
}

// abort releases token after a failed write so the form can be sent again.
func (s *submissions) abort(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen.Delete(token)
}

func validToken(token string) bool {
	return token != "" && len(token) <= maxTokenLength
}
