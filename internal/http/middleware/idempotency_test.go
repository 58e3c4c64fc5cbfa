package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type idemProbe struct {
	calls          int
	user, chat, key string
	hash           string
	found          bool
	err            error
}

func (p *idemProbe) lookup(_ context.Context, userID, chatID, key string) (string, bool, error) {
	p.calls++
	p.user, p.chat, p.key = userID, chatID, key
	return p.hash, p.found, p.err
}

type idemSeen struct {
	key, hash, body string
	replay, bypass  bool
}

func newIdemRouter(p *idemProbe, seen *idemSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(), IdempotencyValidator(IdempotencyOptions{MaxLen: 16}, p.lookup))
	h := func(c *gin.Context) {
		seen.key, _ = GetIdempotencyKey(c)
		seen.hash = RequestHash(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		b, _ := io.ReadAll(c.Request.Body)
		seen.body = string(b)
		c.Status(http.StatusOK)
	}
	r.POST("/chats/:id/messages", h)
	r.GET("/chats/:id/messages", h)
	return r
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func postTurn(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chats/c1/messages", strings.NewReader(body))
	req.Header.Set(HeaderUserID, "u1")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_NoHeader(t *testing.T) {
	p, seen := &idemProbe{}, &idemSeen{}
	w := postTurn(newIdemRouter(p, seen), "", `{"content":"hi"}`)
	if w.Code != http.StatusOK || p.calls != 0 || seen.key != "" || seen.hash != "" {
		t.Fatalf("expected pass-through: code=%d calls=%d seen=%+v", w.Code, p.calls, seen)
	}
}

func TestIdempotency_IgnoredOnGET(t *testing.T) {
	p, seen := &idemProbe{}, &idemSeen{}
	req := httptest.NewRequest(http.MethodGet, "/chats/c1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	newIdemRouter(p, seen).ServeHTTP(httptest.NewRecorder(), req)
	if p.calls != 0 || seen.key != "" {
		t.Fatalf("GET must not be fingerprinted")
	}
}

func TestIdempotency_InvalidKey(t *testing.T) {
	p, seen := &idemProbe{}, &idemSeen{}
	r := newIdemRouter(p, seen)
	for _, k := range []string{"has space", "way-too-long-for-the-limit"} {
		w := postTurn(r, k, "{}")
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("key %q: code=%d body=%s", k, w.Code, w.Body.String())
		}
	}
	if p.calls != 0 {
		t.Fatalf("lookup must not run for invalid keys")
	}
}

func TestIdempotency_FirstRequestIsFingerprinted(t *testing.T) {
	p, seen := &idemProbe{}, &idemSeen{}
	body := `{"content":"Rechnung von ATU"}`
	w := postTurn(newIdemRouter(p, seen), "k1", body)

	if w.Code != http.StatusOK || seen.replay || seen.bypass {
		t.Fatalf("unexpected: code=%d seen=%+v", w.Code, seen)
	}
	if seen.key != "k1" || seen.hash != sha(body) || seen.body != body {
		t.Fatalf("key/hash/body not preserved: %+v", seen)
	}
	if p.user != "u1" || p.chat != "c1" || p.key != "k1" {
		t.Fatalf("lookup got %q %q %q", p.user, p.chat, p.key)
	}
}

func TestIdempotency_ReplayMarksContext(t *testing.T) {
	body := `{"content":"ja"}`
	p, seen := &idemProbe{hash: sha(body), found: true}, &idemSeen{}
	w := postTurn(newIdemRouter(p, seen), "k1", body)
	if w.Code != http.StatusOK || !seen.replay || !seen.bypass {
		t.Fatalf("expected replay: code=%d seen=%+v", w.Code, seen)
	}
}

func TestIdempotency_ReusedKeyWithDifferentBody(t *testing.T) {
	p, seen := &idemProbe{hash: sha("other"), found: true}, &idemSeen{}
	w := postTurn(newIdemRouter(p, seen), "k1", `{"content":"ja"}`)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "idempotency_key_reused") {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestIdempotency_LookupErrorProceeds(t *testing.T) {
	p, seen := &idemProbe{err: errors.New("db down")}, &idemSeen{}
	w := postTurn(newIdemRouter(p, seen), "k1", "{}")
	if w.Code != http.StatusOK || seen.replay {
		t.Fatalf("lookup errors must not block: code=%d seen=%+v", w.Code, seen)
	}
}
