// Package handlers implements the REST endpoints of the vehicle assistant:
// conversations and their transcripts, chat turns with document uploads,
// and read-only views of vehicles, maintenance status and invoice images.
//
// Handlers stay transport-thin. They validate input, call a service and map
// its errors onto the JSON error envelope.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/http/middleware"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
	"github.com/tbourn/go-vehicle-assistant/internal/utils"
)

// ChatService manages conversations.
type ChatService interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
}

// MessageService reads transcripts.
type MessageService interface {
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
	Get(ctx context.Context, userID, chatID, messageID string) (*domain.Message, error)
}

// TurnService runs one conversation turn.
type TurnService interface {
	Send(ctx context.Context, userID, chatID string, turn services.Turn) (*services.Reply, error)
}

// VehicleService backs the read-only vehicle endpoints.
type VehicleService interface {
	List(ctx context.Context) ([]services.VehicleSummary, error)
	MaintenanceStatus(ctx context.Context, vehicleID string) (services.MaintenanceStatus, error)
	InvoiceImage(ctx context.Context, invoiceID string) ([]byte, string, error)
}

// Deps are the collaborators of Handlers. DB is optional; without it weak
// ETags and idempotent replays are disabled.
type Deps struct {
	Chats    ChatService
	Messages MessageService
	Turns    TurnService
	Vehicles VehicleService

	DB             *gorm.DB
	IdempotencyTTL time.Duration
	// MaxMultipartMemory bounds the in-memory part of multipart uploads.
	MaxMultipartMemory int64
	Now                func() time.Time
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	chats    ChatService
	messages MessageService
	turns    TurnService
	vehicles VehicleService

	db           *gorm.DB
	idemTTL      time.Duration
	multipartMem int64
	now          func() time.Time
}

// New returns Handlers bound to d.
func New(d Deps) *Handlers {
	h := &Handlers{
		chats:        d.Chats,
		messages:     d.Messages,
		turns:        d.Turns,
		vehicles:     d.Vehicles,
		db:           d.DB,
		idemTTL:      d.IdempotencyTTL,
		multipartMem: d.MaxMultipartMemory,
		now:          d.Now,
	}
	if h.idemTTL <= 0 {
		h.idemTTL = 24 * time.Hour
	}
	if h.multipartMem <= 0 {
		h.multipartMem = 32 << 20
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	// Title is optional; "New chat" is used when empty and the first message
	// then names the chat.
	Title string `json:"title" example:"BMW 320d Service"`
}

// UpdateChatTitleRequest is the body of PUT /chats/{id}/title.
type UpdateChatTitleRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255" example:"Porsche 911 Rechnungen"`
}

// ListChatsResponse is a page of chats.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

func parseUUIDParam(c *gin.Context, name, what string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

// CreateChat godoc
// @ID          createChat
// @Summary     Create a conversation
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string                      false "Demo user id"
// @Param       body       body    handlers.CreateChatRequest  false "Optional title"
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	ch, err := h.chats.Create(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(req.Title))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List conversations (paginated)
// @Description Newest first. Supports a weak ETag via If-None-Match.
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID      header  string  false "Demo user id"
// @Param       If-None-Match  header  string  false "Previously returned ETag"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListChatsResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"))

	if h.db != nil {
		if n, latest, err := repo.ChatsStats(ctx, h.db, uid); err == nil {
			tag := weakETag(fmt.Sprintf("chats:%s:%d:%d", uid, p.Number, p.Size), n, latest)
			if notModified(c, tag) {
				return
			}
		}
	}

	items, total, err := h.chats.ListPage(ctx, uid, p.Number, p.Size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: paginationOf(p, total)})
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a conversation
// @Tags        Chats
// @Accept      json
// @Param       X-User-ID  header  string                           false "Demo user id"
// @Param       id         path    string                           true  "Chat ID"  format(uuid)
// @Param       body       body    handlers.UpdateChatTitleRequest  true  "New title"
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/title [put]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	chatID, valid := parseUUIDParam(c, "id", "chat")
	if !valid {
		return
	}
	var req UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}
	err := h.chats.UpdateTitle(c.Request.Context(), middleware.UserID(c), chatID, req.Title)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
