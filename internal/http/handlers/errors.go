package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/retry"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
)

// Error codes of the JSON error envelope. Clients branch on these.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
	ErrCodePayloadTooLarge  = "payload_too_large"

	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeAnswerFailed = "answer_failed"

	ErrCodeUnsupportedAttachment = "unsupported_attachment"
	ErrCodeTooManyAttachments    = "too_many_attachments"
	ErrCodeOCRUnavailable        = "ocr_unavailable"
	ErrCodeDocumentTooLarge      = "document_too_large"
	ErrCodeProviderRateLimited   = "provider_rate_limited"
	ErrCodeProviderUnavailable   = "provider_unavailable"
)

// failTurn maps an error of Assistant.Send to a response. Provider rate
// limits surface as 429 with the provider's Retry-After when it sent one.
func failTurn(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	var rerr *retry.Error
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	case errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content or attachments required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content too long")
	case errors.Is(err, services.ErrTooManyAttachments):
		fail(c, http.StatusBadRequest, ErrCodeTooManyAttachments, "too many attachments in one message")
	case errors.Is(err, services.ErrUnsupportedAttachment):
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedAttachment, err.Error())
	case errors.Is(err, ocr.ErrDisabled):
		fail(c, http.StatusUnprocessableEntity, ErrCodeOCRUnavailable, "PDF documents need OCR, which is not configured")
	case errors.Is(err, ocr.ErrTooManyPages), errors.Is(err, ocr.ErrEmptyDocument):
		fail(c, http.StatusUnprocessableEntity, ErrCodeDocumentTooLarge, err.Error())
	case errors.As(err, &mbe):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
	case errors.Is(err, retry.ErrRateLimited):
		wait := 30
		if errors.As(err, &rerr) && rerr.After > 0 {
			wait = int(math.Ceil(rerr.After.Seconds()))
		}
		c.Header("Retry-After", strconv.Itoa(wait))
		fail(c, http.StatusTooManyRequests, ErrCodeProviderRateLimited, "the language model is rate limited, please retry later")
	case errors.Is(err, retry.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderUnavailable, "the language model is unavailable, please retry later")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error())
	}
}
