package services

import (
	"sync"
	"time"
)

// PendingImage is a normalized attachment awaiting confirmation.
type PendingImage struct {
	Name    string
	Data    []byte // normalized JPEG
	MIME    string
	OCRHash string
	OCRText string
}

// PendingPage is one OCR'd page of an uploaded PDF. Number counts across all
// PDFs of the turn, starting at 1.
type PendingPage struct {
	Document string
	Number   int
	Markdown string
}

// Pending is the attachment context captured by an analysis turn and
// consumed by the next turn of the same chat.
type Pending struct {
	Images    []PendingImage
	Pages     []PendingPage
	CreatedAt time.Time
}

// Empty reports whether p carries nothing to act on.
func (p *Pending) Empty() bool {
	return p == nil || (len(p.Images) == 0 && len(p.Pages) == 0)
}

// PendingStore keeps at most one Pending per chat. Entries are overwritten by
// a newer analysis, handed out once by Take and dropped after the TTL.
type PendingStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]*Pending
}

// NewPendingStore returns a store whose entries expire after ttl (0 = never).
func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{ttl: ttl, now: time.Now, items: make(map[string]*Pending)}
}

// Put stores p for chatID, replacing any earlier context.
func (s *PendingStore) Put(chatID string, p *Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.items[chatID] = p
}

// Take removes and returns the context of chatID. Expired entries are
// reported as absent.
func (s *PendingStore) Take(chatID string) (*Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[chatID]
	if !ok {
		return nil, false
	}
	delete(s.items, chatID)
	if s.expired(p) {
		return nil, false
	}
	return p, true
}

// Has reports whether a live context exists for chatID without consuming it.
func (s *PendingStore) Has(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[chatID]
	return ok && !s.expired(p)
}

// Len returns the number of stored contexts, expired ones included.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *PendingStore) expired(p *Pending) bool {
	return s.ttl > 0 && s.now().Sub(p.CreatedAt) >= s.ttl
}

func (s *PendingStore) sweepLocked() {
	for id, p := range s.items {
		if s.expired(p) {
			delete(s.items, id)
		}
	}
}
