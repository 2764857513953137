package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
	"github.com/croquete1/Fitness-Pro-sub002/internal/services"
	chatws "github.com/croquete1/Fitness-Pro-sub002/internal/websocket"
)

type messagingService interface {
	ListThreads(ctx context.Context, viewerID int64, viewerRole models.Role) (*models.Inbox, error)
	LoadThread(ctx context.Context, viewerID int64, viewerRole models.Role, input services.LoadThreadInput) (*models.ThreadView, error)
	Send(ctx context.Context, viewerID int64, viewerRole models.Role, input services.SendInput) (*models.ThreadView, error)
	MarkRead(ctx context.Context, viewerID int64, threadID int64) error
}

type ChatHandler struct {
	service messagingService
	hub     *chatws.Hub
}

func NewChatHandler(service messagingService, hub *chatws.Hub) *ChatHandler {
	return &ChatHandler{
		service: service,
		hub:     hub,
	}
}

// ListThreads returns the viewer's inbox: thread summaries with unread
// counts plus assigned counterparts without a thread yet.
func (h *ChatHandler) ListThreads(c *fiber.Ctx) error {
	viewerID, viewerRole, err := viewerContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	inbox, err := h.service.ListThreads(c.Context(), viewerID, viewerRole)
	if err != nil {
		return mapMessagingError(c, err)
	}

	return c.JSON(fiber.Map{
		"viewer":       inbox.Viewer,
		"threads":      inbox.Threads,
		"participants": inbox.Participants,
	})
}

// GetThread opens a conversation by thread id. Unread messages addressed
// to the viewer are marked read unless mark_as_read=false.
func (h *ChatHandler) GetThread(c *fiber.Ctx) error {
	viewerID, viewerRole, err := viewerContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	threadID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || threadID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid thread id"})
	}

	view, err := h.service.LoadThread(c.Context(), viewerID, viewerRole, services.LoadThreadInput{
		ThreadID:   &threadID,
		MarkAsRead: c.QueryBool("mark_as_read", true),
		Page:       parsePositiveInt(c.Query("page"), 1),
		Limit:      clampMessageLimit(parsePositiveInt(c.Query("limit"), defaultMessageLimit)),
	})
	if err != nil {
		return mapMessagingError(c, err)
	}

	return c.JSON(view)
}

// OpenThreadWith opens (or lazily creates) the conversation with the given
// counterpart.
func (h *ChatHandler) OpenThreadWith(c *fiber.Ctx) error {
	viewerID, viewerRole, err := viewerContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	counterpartID, err := strconv.ParseInt(c.Params("counterpartId"), 10, 64)
	if err != nil || counterpartID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid counterpart id"})
	}

	view, err := h.service.LoadThread(c.Context(), viewerID, viewerRole, services.LoadThreadInput{
		CounterpartID: &counterpartID,
		MarkAsRead:    c.QueryBool("mark_as_read", true),
		Page:          parsePositiveInt(c.Query("page"), 1),
		Limit:         clampMessageLimit(parsePositiveInt(c.Query("limit"), defaultMessageLimit)),
	})
	if err != nil {
		return mapMessagingError(c, err)
	}

	return c.JSON(view)
}

// SendMessage accepts a multipart form: body text, a thread_id or
// counterpart_id, up to 5 files under "attachments", and an optional
// ephemeral flag that puts image attachments on a 24h access window.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	viewerID, viewerRole, err := viewerContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	input := services.SendInput{
		Body: c.FormValue("body"),
	}

	if raw := c.FormValue("thread_id"); raw != "" {
		threadID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || threadID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid thread id"})
		}
		input.ThreadID = &threadID
	}
	if raw := c.FormValue("counterpart_id"); raw != "" {
		counterpartID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || counterpartID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid counterpart id"})
		}
		input.CounterpartID = &counterpartID
	}

	ephemeral := c.FormValue("ephemeral") == "true"
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fileHeader := range form.File["attachments"] {
			file, err := fileHeader.Open()
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unreadable attachment"})
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unreadable attachment"})
			}

			input.Attachments = append(input.Attachments, services.AttachmentInput{
				FileName:    fileHeader.Filename,
				ContentType: fileHeader.Header.Get("Content-Type"),
				IsEphemeral: ephemeral,
				Content:     content,
			})
		}
	}

	view, err := h.service.Send(c.Context(), viewerID, viewerRole, input)
	if err != nil {
		return mapMessagingError(c, err)
	}

	if h.hub != nil {
		recipientID, _ := view.Thread.Counterpart(viewerID)
		h.hub.NotifyThreadUpdated(&view.Thread, viewerID, recipientID)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

// MarkThreadRead flips read state for every unread message addressed to
// the viewer in the thread. Idempotent.
func (h *ChatHandler) MarkThreadRead(c *fiber.Ctx) error {
	viewerID, _, err := viewerContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	threadID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || threadID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid thread id"})
	}

	if err := h.service.MarkRead(c.Context(), viewerID, threadID); err != nil {
		return mapMessagingError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func viewerContext(c *fiber.Ctx) (int64, models.Role, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, models.RoleUnknown, strconv.ErrSyntax
	}
	viewerID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, models.RoleUnknown, err
	}

	rawRole, _ := c.Locals("role").(string)
	return viewerID, models.ResolveRole(rawRole), nil
}

func mapMessagingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	case errors.Is(err, services.ErrThreadForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrThreadNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Thread not found"})
	case errors.Is(err, services.ErrMissingIdentifier):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Thread id or counterpart id required"})
	case errors.Is(err, services.ErrRoleUnknown):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Viewer role must be client or coach"})
	case errors.Is(err, services.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message needs a body or an attachment"})
	case errors.Is(err, services.ErrTooManyAttachments):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "At most 5 attachments per message"})
	case errors.Is(err, services.ErrAttachmentTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "Attachment exceeds the 15MB limit"})
	case errors.Is(err, services.ErrAttachmentType):
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "Attachment type not allowed"})
	case errors.Is(err, services.ErrEphemeralOnlyImage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Ephemeral attachments must be images"})
	case errors.Is(err, services.ErrInvalidAttachment):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Attachment has no content"})
	case errors.Is(err, services.ErrCreateFailed):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create thread"})
	case errors.Is(err, services.ErrProfilesFetch):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profiles"})
	case errors.Is(err, services.ErrUnreadFetch):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch unread counts"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Thread not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process messaging request"})
	}
}
