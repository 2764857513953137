package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

const defaultMessagePageLimit = 100

// newestPage asks loadView to resolve the final page of the thread from the
// message count instead of a fixed page number.
const newestPage = -1

type threadStore interface {
	Create(ctx context.Context, clientID, coachID int64) (*models.Thread, error)
	GetByID(ctx context.Context, threadID int64) (*models.Thread, error)
	GetByPair(ctx context.Context, clientID, coachID int64) (*models.Thread, error)
	ListForParticipant(ctx context.Context, viewerID int64) ([]models.ThreadSummary, error)
	SetLastMessage(ctx context.Context, threadID int64, at time.Time, preview string, authorID int64) error
}

type messageStore interface {
	Create(ctx context.Context, threadID, fromID, toID int64, body *string) (*models.Message, error)
	Delete(ctx context.Context, messageID int64) error
	CountByThread(ctx context.Context, threadID int64) (int, error)
	ListByThread(ctx context.Context, threadID int64, limit, offset int) ([]models.Message, int, error)
	MarkThreadRead(ctx context.Context, threadID, readerID int64) error
}

type attachmentStore interface {
	Upload(ctx context.Context, threadID, messageID int64, input AttachmentInput) (*models.Attachment, error)
	Remove(ctx context.Context, objectPaths []string) error
	ResolveAccessURL(ctx context.Context, attachment *models.Attachment, now time.Time) error
}

type attachmentReader interface {
	ListByMessageIDs(ctx context.Context, messageIDs []int64) (map[int64][]models.Attachment, error)
}

type profileStore interface {
	GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]models.Profile, error)
	ListAssignedCounterpartIDs(ctx context.Context, viewerID int64, role models.Role) ([]int64, error)
}

// MessagingService is the chat core: thread resolution, the message ledger,
// and inbox assembly. It is transport-agnostic; the route layer maps its
// sentinel errors to responses.
type MessagingService struct {
	threadRepo     threadStore
	messageRepo    messageStore
	attachments    attachmentStore
	attachmentRepo attachmentReader
	profileRepo    profileStore
	now            func() time.Time
}

func NewMessagingService(
	threadRepo threadStore,
	messageRepo messageStore,
	attachments attachmentStore,
	attachmentRepo attachmentReader,
	profileRepo profileStore,
) *MessagingService {
	return &MessagingService{
		threadRepo:     threadRepo,
		messageRepo:    messageRepo,
		attachments:    attachments,
		attachmentRepo: attachmentRepo,
		profileRepo:    profileRepo,
		now:            time.Now,
	}
}

type SendInput struct {
	ThreadID      *int64
	CounterpartID *int64
	Body          string
	Attachments   []AttachmentInput
}

// Send appends a message to the viewer's thread with the counterpart,
// creating the thread on first contact. Attachment uploads run
// sequentially; if any fails, every completed upload is removed and the
// message row deleted before the error propagates, so callers never
// observe a half-attached message. The sender's own message is not marked
// read.
func (s *MessagingService) Send(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
	input SendInput,
) (*models.ThreadView, error) {
	if viewerID <= 0 {
		return nil, ErrUnauthenticated
	}

	trimmed := strings.TrimSpace(input.Body)
	if trimmed == "" && len(input.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(input.Attachments) > MaxAttachmentsPerMessage {
		return nil, ErrTooManyAttachments
	}

	resolved, err := s.EnsureThread(ctx, viewerID, viewerRole, ThreadRef{
		ThreadID:        input.ThreadID,
		CounterpartID:   input.CounterpartID,
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, err
	}
	thread := resolved.Thread

	var body *string
	if trimmed != "" {
		body = &trimmed
	}

	message, err := s.messageRepo.Create(ctx, thread.ID, viewerID, resolved.CounterpartID, body)
	if err != nil {
		return nil, err
	}

	uploadedPaths := make([]string, 0, len(input.Attachments))
	for _, attachmentInput := range input.Attachments {
		attachment, uploadErr := s.attachments.Upload(ctx, thread.ID, message.ID, attachmentInput)
		if uploadErr != nil {
			s.rollbackSend(ctx, message.ID, uploadedPaths)
			return nil, uploadErr
		}
		uploadedPaths = append(uploadedPaths, attachment.StoragePath)
		message.Attachments = append(message.Attachments, *attachment)
	}

	preview := MessagePreview(trimmed, len(input.Attachments))
	if err := s.threadRepo.SetLastMessage(ctx, thread.ID, message.SentAt, preview, viewerID); err != nil {
		return nil, err
	}

	thread.LastMessageAt = &message.SentAt
	thread.LastMessagePreview = &preview
	thread.LastMessageAuthorID = &viewerID

	// The response carries the newest page, so the caller always sees the
	// message it just sent even on threads past the page size.
	return s.loadView(ctx, viewerID, viewerRole, thread, false, newestPage, 0)
}

// rollbackSend unwinds a partially-sent message: uploaded binaries first,
// then the message row (attachment metadata cascades with it).
func (s *MessagingService) rollbackSend(ctx context.Context, messageID int64, uploadedPaths []string) {
	_ = s.attachments.Remove(ctx, uploadedPaths)
	_ = s.messageRepo.Delete(ctx, messageID)
}

// MarkRead stamps every unread message addressed to the viewer in the
// thread. Safe to call redundantly.
func (s *MessagingService) MarkRead(ctx context.Context, viewerID int64, threadID int64) error {
	if viewerID <= 0 {
		return ErrUnauthenticated
	}

	if _, err := s.resolveByThreadID(ctx, viewerID, threadID); err != nil {
		return err
	}

	return s.messageRepo.MarkThreadRead(ctx, threadID, viewerID)
}

// ListThreads assembles the viewer's inbox: every existing thread as a
// summary with unread count, plus assigned counterparts who have no thread
// yet so the UI can offer "start a conversation" entries. Listing never
// creates threads.
func (s *MessagingService) ListThreads(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
) (*models.Inbox, error) {
	if viewerID <= 0 {
		return nil, ErrUnauthenticated
	}

	return s.buildInbox(ctx, viewerID, viewerRole)
}

type LoadThreadInput struct {
	ThreadID      *int64
	CounterpartID *int64
	MarkAsRead    bool
	Page          int
	Limit         int
}

// LoadThread opens one conversation: messages in ascending send order with
// attachment URLs resolved, unread-to-viewer messages optionally marked
// read, and the refreshed inbox in the same payload. Opening by counterpart
// id creates the thread lazily on first request.
func (s *MessagingService) LoadThread(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
	input LoadThreadInput,
) (*models.ThreadView, error) {
	if viewerID <= 0 {
		return nil, ErrUnauthenticated
	}

	resolved, err := s.EnsureThread(ctx, viewerID, viewerRole, ThreadRef{
		ThreadID:        input.ThreadID,
		CounterpartID:   input.CounterpartID,
		CreateIfMissing: input.CounterpartID != nil,
	})
	if err != nil {
		return nil, err
	}

	return s.loadView(ctx, viewerID, viewerRole, resolved.Thread, input.MarkAsRead, input.Page, input.Limit)
}

func (s *MessagingService) loadView(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
	thread *models.Thread,
	markAsRead bool,
	page int,
	limit int,
) (*models.ThreadView, error) {
	if limit <= 0 {
		limit = defaultMessagePageLimit
	}
	if page == newestPage {
		count, err := s.messageRepo.CountByThread(ctx, thread.ID)
		if err != nil {
			return nil, err
		}
		page = (count + limit - 1) / limit
	}
	if page <= 0 {
		page = 1
	}

	messages, total, err := s.messageRepo.ListByThread(ctx, thread.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	if markAsRead {
		if err := s.messageRepo.MarkThreadRead(ctx, thread.ID, viewerID); err != nil {
			return nil, err
		}
		readAt := s.now()
		for i := range messages {
			if messages[i].ToID != nil && *messages[i].ToID == viewerID && messages[i].ReadAt == nil {
				messages[i].ReadAt = &readAt
				messages[i].Status = models.MessageStatusRead
			}
		}
	}

	messageIDs := make([]int64, 0, len(messages))
	for _, message := range messages {
		messageIDs = append(messageIDs, message.ID)
	}

	grouped, err := s.attachmentRepo.ListByMessageIDs(ctx, messageIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range messages {
		attachments := grouped[messages[i].ID]
		for j := range attachments {
			if err := s.attachments.ResolveAccessURL(ctx, &attachments[j], now); err != nil {
				return nil, err
			}
		}
		if attachments == nil {
			attachments = make([]models.Attachment, 0)
		}
		messages[i].Attachments = attachments
	}

	inbox, err := s.buildInbox(ctx, viewerID, viewerRole)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return &models.ThreadView{
		Thread:   *thread,
		Messages: messages,
		Pagination: models.PaginationMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
		Inbox: *inbox,
	}, nil
}

func (s *MessagingService) buildInbox(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
) (*models.Inbox, error) {
	summaries, err := s.threadRepo.ListForParticipant(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadFetch, err)
	}

	assignedIDs, err := s.profileRepo.ListAssignedCounterpartIDs(ctx, viewerID, viewerRole)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfilesFetch, err)
	}

	counterpartByThread := make(map[int64]int64, len(summaries))
	threadCounterparts := make(map[int64]struct{}, len(summaries))
	profileIDs := make([]int64, 0, len(summaries)+len(assignedIDs)+1)
	profileIDs = append(profileIDs, viewerID)
	for _, summary := range summaries {
		counterpartID, _ := summary.Thread.Counterpart(viewerID)
		counterpartByThread[summary.ID] = counterpartID
		if _, seen := threadCounterparts[counterpartID]; !seen {
			threadCounterparts[counterpartID] = struct{}{}
			profileIDs = append(profileIDs, counterpartID)
		}
	}
	for _, assignedID := range assignedIDs {
		if _, seen := threadCounterparts[assignedID]; !seen {
			profileIDs = append(profileIDs, assignedID)
		}
	}

	profiles, err := s.profileRepo.GetByUserIDs(ctx, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfilesFetch, err)
	}

	participants := make([]models.Participant, 0, len(profileIDs))
	for i := range summaries {
		counterpartID := counterpartByThread[summaries[i].ID]
		_, counterpartRole := summaries[i].Thread.Counterpart(viewerID)
		participant := buildParticipant(profiles, counterpartID, counterpartRole)
		threadID := summaries[i].ID
		participant.HasThread = true
		participant.ThreadID = &threadID
		summaries[i].Counterpart = participant
		participants = append(participants, participant)
	}

	for _, assignedID := range assignedIDs {
		if _, hasThread := threadCounterparts[assignedID]; hasThread {
			continue
		}
		participants = append(participants, buildParticipant(profiles, assignedID, oppositeRole(viewerRole)))
	}

	return &models.Inbox{
		Viewer:       buildParticipant(profiles, viewerID, viewerRole),
		Threads:      summaries,
		Participants: participants,
	}, nil
}

func buildParticipant(
	profiles map[int64]models.Profile,
	userID int64,
	fallbackRole models.Role,
) models.Participant {
	participant := models.Participant{
		UserID: userID,
		Role:   fallbackRole,
	}

	profile, ok := profiles[userID]
	if !ok {
		return participant
	}

	participant.FullName = profile.FullName
	participant.AvatarURL = profile.AvatarURL
	if role := models.ResolveRole(profile.Role); role != models.RoleUnknown {
		participant.Role = role
	}
	return participant
}

func oppositeRole(role models.Role) models.Role {
	switch role {
	case models.RoleClient:
		return models.RoleCoach
	case models.RoleCoach:
		return models.RoleClient
	default:
		return models.RoleUnknown
	}
}

const previewMaxLength = 200

// MessagePreview derives the denormalized thread preview: the trimmed body
// capped at 200 chars, or "{N} anexo(s)" for attachment-only messages.
func MessagePreview(body string, attachmentCount int) string {
	if body != "" {
		runes := []rune(body)
		if len(runes) > previewMaxLength {
			return string(runes[:previewMaxLength])
		}
		return body
	}
	if attachmentCount > 0 {
		return fmt.Sprintf("%d anexo(s)", attachmentCount)
	}
	return ""
}
