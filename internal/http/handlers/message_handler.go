package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/http/middleware"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
	"github.com/tbourn/go-vehicle-assistant/internal/utils"
)

// AttachmentPayload is a file inside a JSON turn. Data is standard base64 or
// a data URI ("data:image/jpeg;base64,..."), whose media type is used when
// MIMEType is empty.
type AttachmentPayload struct {
	Name     string `json:"name"      example:"rechnung.jpg"`
	MIMEType string `json:"mime_type" example:"image/jpeg"`
	Data     string `json:"data"`
}

// PostMessageRequest is the JSON body of POST /chats/{id}/messages.
type PostMessageRequest struct {
	Content     string              `json:"content"     example:"Bitte die Rechnung für den BMW erfassen"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// PostMessageResponse carries the assistant reply of a turn. UserMessage and
// Phase are absent on idempotent replays.
type PostMessageResponse struct {
	Message     *domain.Message `json:"message"`
	UserMessage *domain.Message `json:"user_message,omitempty"`
	Phase       string          `json:"phase,omitempty" example:"analysis"`
}

// ListMessagesResponse is a page of the transcript.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes line endings and collapses runs of blank lines.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var errBadAttachment = errors.New("attachment data is not valid base64")

// decodeAttachment turns a JSON attachment into a service attachment.
func decodeAttachment(i int, p AttachmentPayload) (services.Attachment, error) {
	data, mime := p.Data, strings.TrimSpace(p.MIMEType)
	if rest, found := strings.CutPrefix(data, "data:"); found {
		meta, payload, ok := strings.Cut(rest, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return services.Attachment{}, errBadAttachment
		}
		if mime == "" {
			mime = strings.TrimSuffix(meta, ";base64")
		}
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) == 0 {
		return services.Attachment{}, errBadAttachment
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = fmt.Sprintf("attachment-%d", i+1)
	}
	return services.Attachment{Name: name, MIMEType: mime, Data: raw}, nil
}

// readTurn reads a turn from a JSON or multipart/form-data body. Multipart
// turns carry the text in "content" and the files in "attachments".
func (h *Handlers) readTurn(c *gin.Context) (services.Turn, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(h.multipartMem); err != nil {
			return services.Turn{}, err
		}
		form := c.Request.MultipartForm
		turn := services.Turn{Content: sanitizeContent(strings.Join(form.Value["content"], "\n"))}
		for _, fh := range form.File["attachments"] {
			att, err := readPart(fh)
			if err != nil {
				return services.Turn{}, err
			}
			turn.Attachments = append(turn.Attachments, att)
		}
		return turn, nil
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return services.Turn{}, err
	}
	turn := services.Turn{Content: sanitizeContent(req.Content)}
	for i, p := range req.Attachments {
		att, err := decodeAttachment(i, p)
		if err != nil {
			return services.Turn{}, fmt.Errorf("attachment %d: %w", i+1, err)
		}
		turn.Attachments = append(turn.Attachments, att)
	}
	return turn, nil
}

func readPart(fh *multipart.FileHeader) (services.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Attachment{}, err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return services.Attachment{}, err
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "application/octet-stream" {
		mime = ""
	}
	return services.Attachment{Name: fh.Filename, MIMEType: mime, Data: raw}, nil
}

// replay serves the stored reply of an idempotent retry. It reports false
// when nothing could be replayed and the turn has to run.
func (h *Handlers) replay(c *gin.Context, userID, chatID, key string) bool {
	if h.db == nil || key == "" || !middleware.IsReplay(c) {
		return false
	}
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, userID, chatID, key, h.now().UTC())
	if err != nil || rec == nil {
		return false
	}
	prev, err := h.messages.Get(ctx, userID, chatID, rec.MessageID)
	if err != nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, PostMessageResponse{Message: prev})
	return true
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a turn
// @Description Sends text and optional photos or PDFs. A turn with attachments is analysed
// @Description and nothing is stored yet; the next text turn confirms and records it.
// @Description Idempotency-Key replays the stored reply of a previous identical request.
// @Tags        Messages
// @Accept      json
// @Accept      mpfd
// @Produce     json
// @Param       X-User-ID        header    string                       false "Demo user id"
// @Param       Idempotency-Key  header    string                       false "Retry key"
// @Param       id               path      string                       true  "Chat ID"  format(uuid)
// @Param       body             body      handlers.PostMessageRequest  false "JSON turn"
// @Param       content          formData  string                       false "Text (multipart)"
// @Param       attachments      formData  file                         false "Photos or PDFs (multipart)"
// @Success     200  {object}  handlers.PostMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     413  {object}  handlers.ErrorResponse
// @Failure     415  {object}  handlers.ErrorResponse "unsupported_attachment"
// @Failure     422  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse "provider_rate_limited"
// @Failure     500  {object}  handlers.ErrorResponse "answer_failed"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	chatID, valid := parseUUIDParam(c, "id", "chat")
	if !valid {
		return
	}
	uid := middleware.UserID(c)
	key, _ := middleware.GetIdempotencyKey(c)
	if h.replay(c, uid, chatID, key) {
		return
	}

	turn, err := h.readTurn(c)
	if err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		case errors.Is(err, errBadAttachment):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message body")
		}
		return
	}

	ctx := c.Request.Context()
	reply, err := h.turns.Send(ctx, uid, chatID, turn)
	if err != nil {
		failTurn(c, err)
		return
	}

	if key != "" && h.db != nil {
		if _, err := repo.CreateIdempotency(ctx, h.db, uid, chatID, key, middleware.RequestHash(c),
			reply.Message.ID, http.StatusOK, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}
	ok(c, http.StatusOK, PostMessageResponse{
		Message:     reply.Message,
		UserMessage: reply.UserMessage,
		Phase:       reply.Phase,
	})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Read the transcript (paginated)
// @Description Chronological. Supports a weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID      header  string  false "Demo user id"
// @Param       If-None-Match  header  string  false "Previously returned ETag"
// @Param       id             path    string  true  "Chat ID"  format(uuid)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID, valid := parseUUIDParam(c, "id", "chat")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"))

	if h.db != nil && c.GetHeader("If-None-Match") != "" {
		// ownership first, so a 304 never confirms someone else's chat
		if _, err := h.chats.Get(ctx, uid, chatID); err != nil {
			failChat(c, err)
			return
		}
	}
	if h.db != nil {
		if n, latest, err := repo.MessagesStats(ctx, h.db, chatID); err == nil {
			if notModified(c, weakETag(fmt.Sprintf("messages:%s:%d:%d", chatID, p.Number, p.Size), n, latest)) {
				return
			}
		}
	}

	items, total, err := h.messages.ListPage(ctx, uid, chatID, p.Number, p.Size)
	if err != nil {
		failChat(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: paginationOf(p, total)})
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Read one message with its tool results
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  false "Demo user id"
// @Param       id         path    string  true  "Chat ID"     format(uuid)
// @Param       mid        path    string  true  "Message ID"  format(uuid)
// @Success     200  {object}  domain.Message
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages/{mid} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	chatID, valid := parseUUIDParam(c, "id", "chat")
	if !valid {
		return
	}
	m, err := h.messages.Get(c.Request.Context(), middleware.UserID(c), chatID, c.Param("mid"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, m)
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	default:
		failChat(c, err)
	}
}

func failChat(c *gin.Context, err error) {
	if errors.Is(err, services.ErrChatNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
}
