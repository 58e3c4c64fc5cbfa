package ocr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) GetOCR(_ context.Context, hash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[hash]
	return v, ok, nil
}

func (m *memStore) PutOCR(_ context.Context, hash, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if _, ok := m.data[hash]; !ok {
		m.data[hash] = text
	}
	return nil
}

func TestHash_Stable(t *testing.T) {
	a, b := Hash([]byte("abc")), Hash([]byte("abc"))
	if a != b || len(a) != 64 {
		t.Fatalf("hash not stable or wrong length: %q %q", a, b)
	}
	if Hash([]byte("abd")) == a {
		t.Fatalf("different bytes must hash differently")
	}
}

func TestCache_OneFetchPerContent(t *testing.T) {
	store := newMemStore()
	c := NewCache(store)
	var calls int32
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "Werkstatt Müller", nil
	}

	first, err := c.GetOrFetch(context.Background(), []byte("img"), fetch)
	if err != nil || first.Tier != TierProvider || first.Text != "Werkstatt Müller" {
		t.Fatalf("first lookup = %+v, %v", first, err)
	}
	second, err := c.GetOrFetch(context.Background(), []byte("img"), fetch)
	if err != nil || second.Tier != TierMemory {
		t.Fatalf("second lookup = %+v, %v", second, err)
	}
	if calls != 1 || store.puts != 1 {
		t.Fatalf("calls=%d puts=%d, want 1/1", calls, store.puts)
	}

	// a fresh process finds the text in the store
	restarted := NewCache(store)
	third, err := restarted.GetOrFetch(context.Background(), []byte("img"), fetch)
	if err != nil || third.Tier != TierStore || third.Text != "Werkstatt Müller" {
		t.Fatalf("after restart = %+v, %v", third, err)
	}
	if calls != 1 {
		t.Fatalf("store hit must not call provider, calls=%d", calls)
	}
}

func TestCache_ConcurrentLookupsShareOneCall(t *testing.T) {
	c := NewCache(nil)
	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "text", nil
	}

	var wg sync.WaitGroup
	results := make([]Lookup, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := c.GetOrFetch(context.Background(), []byte("same"), fetch)
			if err != nil {
				t.Errorf("lookup %d: %v", i, err)
			}
			results[i] = l
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("provider calls = %d, want 1", calls)
	}
	for i, r := range results {
		if r.Text != "text" {
			t.Fatalf("result %d = %+v", i, r)
		}
	}
}

func TestCache_FetchErrorNotCached(t *testing.T) {
	c := NewCache(newMemStore())
	boom := errors.New("boom")
	if _, err := c.GetOrFetch(context.Background(), []byte("x"), func(context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	l, err := c.GetOrFetch(context.Background(), []byte("x"), func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || l.Text != "ok" || l.Tier != TierProvider {
		t.Fatalf("retry after error = %+v, %v", l, err)
	}
}

func TestCache_FirstTextWins(t *testing.T) {
	c := NewCache(nil)
	c.memPut("h", "first")
	c.memPut("h", "second")
	if got, _ := c.Peek(context.Background(), "h"); got != "first" {
		t.Fatalf("entry replaced: %q", got)
	}
}

func TestJoinPages(t *testing.T) {
	got := JoinPages([]Page{{Number: 1, Markdown: " a "}, {Number: 2, Markdown: "b"}})
	want := "--- Page 1 ---\na\n\n--- Page 2 ---\nb"
	if got != want {
		t.Fatalf("JoinPages = %q, want %q", got, want)
	}
}
