package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxAttachmentSizeBytes   = 15_000_000
	MaxAttachmentsPerMessage = 5

	ephemeralWindow         = 24 * time.Hour
	signedURLCeilingSeconds = 3600
	signedURLFloorSeconds   = 60

	maxFileNameLength = 120
	fallbackFileName  = "anexo"
)

// Static documents allowed next to images. Everything else is rejected.
var allowedDocumentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
}

type attachmentWriter interface {
	Create(ctx context.Context, attachment *models.Attachment) error
}

// AttachmentService validates and persists message attachments and derives
// time-limited access URLs for them.
type AttachmentService struct {
	storage        ObjectStorage
	attachmentRepo attachmentWriter
	bucket         string
	now            func() time.Time
}

type AttachmentInput struct {
	FileName    string
	ContentType string
	IsEphemeral bool
	Content     []byte
}

func NewAttachmentService(
	storage ObjectStorage,
	attachmentRepo attachmentWriter,
	bucket string,
) *AttachmentService {
	return &AttachmentService{
		storage:        storage,
		attachmentRepo: attachmentRepo,
		bucket:         bucket,
		now:            time.Now,
	}
}

// Upload validates the payload, persists the binary, then inserts the
// metadata row. A failed metadata insert removes the just-uploaded binary
// so no orphaned blobs are left behind.
func (s *AttachmentService) Upload(
	ctx context.Context,
	threadID int64,
	messageID int64,
	input AttachmentInput,
) (*models.Attachment, error) {
	if len(input.Content) == 0 {
		return nil, ErrInvalidAttachment
	}
	if int64(len(input.Content)) > MaxAttachmentSizeBytes {
		return nil, ErrAttachmentTooLarge
	}

	contentType := normalizeContentType(input.ContentType)
	if !isImageType(contentType) {
		if _, ok := allowedDocumentTypes[contentType]; !ok {
			return nil, ErrAttachmentType
		}
	}
	if input.IsEphemeral && !isImageType(contentType) {
		return nil, ErrEphemeralOnlyImage
	}

	fileName := SanitizeFileName(input.FileName)
	objectPath := fmt.Sprintf("%d/%d/%s-%s", threadID, messageID, uuid.NewString(), fileName)

	if err := s.storage.Upload(ctx, objectPath, input.Content, contentType); err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}

	var expiresAt *time.Time
	if input.IsEphemeral {
		expiry := s.now().Add(ephemeralWindow)
		expiresAt = &expiry
	}

	attachment := &models.Attachment{
		MessageID:   messageID,
		Bucket:      s.bucket,
		StoragePath: objectPath,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   int64(len(input.Content)),
		IsEphemeral: input.IsEphemeral,
		ExpiresAt:   expiresAt,
	}

	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		_ = s.storage.Remove(ctx, []string{objectPath})
		return nil, fmt.Errorf("persist attachment metadata: %w", err)
	}

	return attachment, nil
}

// Remove deletes already-uploaded binaries. The send path uses it to unwind
// completed uploads when a later step fails.
func (s *AttachmentService) Remove(ctx context.Context, objectPaths []string) error {
	if len(objectPaths) == 0 {
		return nil
	}
	return s.storage.Remove(ctx, objectPaths)
}

// ResolveAccessURL fills the derived SignedURL/Expired fields. Once
// expires_at has passed no URL is issued, whether or not the underlying
// object still exists.
func (s *AttachmentService) ResolveAccessURL(
	ctx context.Context,
	attachment *models.Attachment,
	now time.Time,
) error {
	if attachment.ExpiresAt != nil && now.After(*attachment.ExpiresAt) {
		attachment.Expired = true
		attachment.SignedURL = nil
		return nil
	}

	signedURL, err := s.storage.CreateSignedURL(ctx, attachment.StoragePath, SignedURLTTL(attachment.ExpiresAt, now))
	if err != nil {
		return fmt.Errorf("sign attachment url: %w", err)
	}

	attachment.SignedURL = &signedURL
	return nil
}

// SignedURLTTL clamps the signing TTL so a signed URL never outlives the
// attachment's own expiry window: min(ceiling, max(floor, expiresAt-now)).
// Attachments without an expiry always get the full ceiling.
func SignedURLTTL(expiresAt *time.Time, now time.Time) int {
	if expiresAt == nil {
		return signedURLCeilingSeconds
	}

	remaining := int(expiresAt.Sub(now).Seconds())
	if remaining < signedURLFloorSeconds {
		remaining = signedURLFloorSeconds
	}
	if remaining > signedURLCeilingSeconds {
		remaining = signedURLCeilingSeconds
	}
	return remaining
}

// SanitizeFileName normalizes the original file name to the safe character
// set [A-Za-z0-9 ()._-]: accents are folded to ASCII, anything else is
// stripped, whitespace and hyphen runs collapse, and the result is capped
// at 120 chars with "anexo" as the empty fallback.
func SanitizeFileName(raw string) string {
	decomposed := norm.NFKD.String(raw)

	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '(' || r == ')' || r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	name = strings.Trim(name, " .-")

	if len(name) > maxFileNameLength {
		name = strings.Trim(name[:maxFileNameLength], " .-")
	}
	if name == "" {
		return fallbackFileName
	}
	return name
}

func normalizeContentType(contentType string) string {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(normalized, ";"); i >= 0 {
		normalized = strings.TrimSpace(normalized[:i])
	}
	return normalized
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
