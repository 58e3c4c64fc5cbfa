package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying a client retry key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemHash   = "idem.hash"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	MaxLen  int            // default 200
	Pattern *regexp.Regexp // default ^[A-Za-z0-9._~\-:]+$
}

// IdempotencyLookup reports the request fingerprint stored for (user, chat,
// key). found is false when no live record exists.
type IdempotencyLookup func(ctx context.Context, userID, chatID, key string) (requestHash string, found bool, err error)

// IdempotencyValidator validates the Idempotency-Key header of POST
// requests, fingerprints the body (sha256, hex) and consults lookup:
//
//   - no header or not a POST: pass through
//   - malformed key: 400 bad_idempotency_key
//   - stored record with a different fingerprint: 422 idempotency_key_reused
//   - stored record with the same fingerprint: mark replay and rate bypass
//
// The body is restored so handlers can read it again. Lookup errors are
// ignored and the request is processed normally.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		hash, err := fingerprint(c.Request)
		if err != nil {
			abortJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemHash, hash)

		if lookup != nil {
			stored, found, err := lookup(c.Request.Context(), UserID(c), c.Param("id"), key)
			switch {
			case err != nil || !found:
			case stored != "" && stored != hash:
				abortJSON(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
					"Idempotency-Key was already used with a different request")
				return
			default:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// fingerprint hashes the request body and puts it back.
func fingerprint(r *http.Request) (string, error) {
	if r.Body == nil {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s, _ := c.Value(ctxKeyIdemKey).(string)
	return s, s != ""
}

// RequestHash returns the body fingerprint computed alongside the key.
func RequestHash(c *gin.Context) string {
	s, _ := c.Value(ctxKeyIdemHash).(string)
	return s
}

// IsReplay reports whether a stored reply exists for this request.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
