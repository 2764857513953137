package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

type stubObjectStorage struct {
	uploads       []string
	removed       []string
	signedPaths   []string
	signedTTLs    []int
	uploadErr     error
	signErr       error
}

func (s *stubObjectStorage) Upload(_ context.Context, objectPath string, _ []byte, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploads = append(s.uploads, objectPath)
	return nil
}

func (s *stubObjectStorage) Remove(_ context.Context, objectPaths []string) error {
	s.removed = append(s.removed, objectPaths...)
	return nil
}

func (s *stubObjectStorage) CreateSignedURL(_ context.Context, objectPath string, ttlSeconds int) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	s.signedPaths = append(s.signedPaths, objectPath)
	s.signedTTLs = append(s.signedTTLs, ttlSeconds)
	return "https://storage.example/signed/" + objectPath, nil
}

type stubAttachmentWriter struct {
	created   []*models.Attachment
	createErr error
	nextID    int64
}

func (s *stubAttachmentWriter) Create(_ context.Context, attachment *models.Attachment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	attachment.ID = s.nextID
	attachment.CreatedAt = time.Now()
	s.created = append(s.created, attachment)
	return nil
}

func newTestAttachmentService(storage *stubObjectStorage, writer *stubAttachmentWriter) *AttachmentService {
	return NewAttachmentService(storage, writer, "chat-attachments")
}

func TestUploadAcceptsSizeAtCeiling(t *testing.T) {
	storage := &stubObjectStorage{}
	service := newTestAttachmentService(storage, &stubAttachmentWriter{})

	attachment, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "progress.png",
		ContentType: "image/png",
		Content:     make([]byte, MaxAttachmentSizeBytes),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if attachment.SizeBytes != MaxAttachmentSizeBytes {
		t.Fatalf("expected size %d, got %d", MaxAttachmentSizeBytes, attachment.SizeBytes)
	}
}

func TestUploadRejectsSizeOverCeiling(t *testing.T) {
	service := newTestAttachmentService(&stubObjectStorage{}, &stubAttachmentWriter{})

	_, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "progress.png",
		ContentType: "image/png",
		Content:     make([]byte, MaxAttachmentSizeBytes+1),
	})
	if !errors.Is(err, ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	service := newTestAttachmentService(&stubObjectStorage{}, &stubAttachmentWriter{})

	_, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "empty.png",
		ContentType: "image/png",
	})
	if !errors.Is(err, ErrInvalidAttachment) {
		t.Fatalf("expected ErrInvalidAttachment, got %v", err)
	}
}

func TestUploadRejectsDisallowedContentType(t *testing.T) {
	service := newTestAttachmentService(&stubObjectStorage{}, &stubAttachmentWriter{})

	_, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Content:     []byte("hello"),
	})
	if !errors.Is(err, ErrAttachmentType) {
		t.Fatalf("expected ErrAttachmentType, got %v", err)
	}
}

func TestUploadAllowsStaticDocuments(t *testing.T) {
	storage := &stubObjectStorage{}
	service := newTestAttachmentService(storage, &stubAttachmentWriter{})

	attachment, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "plan.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if attachment.ExpiresAt != nil {
		t.Fatalf("non-ephemeral attachment must not expire, got %v", attachment.ExpiresAt)
	}
}

func TestUploadEphemeralRejectsNonImage(t *testing.T) {
	service := newTestAttachmentService(&stubObjectStorage{}, &stubAttachmentWriter{})

	_, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "plan.pdf",
		ContentType: "application/pdf",
		IsEphemeral: true,
		Content:     []byte("%PDF-1.4"),
	})
	if !errors.Is(err, ErrEphemeralOnlyImage) {
		t.Fatalf("expected ErrEphemeralOnlyImage, got %v", err)
	}
}

func TestUploadEphemeralImageGetsExpiryWindow(t *testing.T) {
	service := newTestAttachmentService(&stubObjectStorage{}, &stubAttachmentWriter{})
	frozen := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return frozen }

	attachment, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "checkin.png",
		ContentType: "image/png",
		IsEphemeral: true,
		Content:     []byte{0x89, 0x50, 0x4e, 0x47},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if attachment.ExpiresAt == nil {
		t.Fatal("ephemeral attachment must carry an expiry")
	}
	if want := frozen.Add(24 * time.Hour); !attachment.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, attachment.ExpiresAt)
	}
}

func TestUploadNamespacesStoragePath(t *testing.T) {
	storage := &stubObjectStorage{}
	service := newTestAttachmentService(storage, &stubAttachmentWriter{})

	attachment, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "Relatório (final) #1!.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if !strings.HasPrefix(attachment.StoragePath, "7/99/") {
		t.Fatalf("expected path namespaced by thread and message, got %q", attachment.StoragePath)
	}
	if !strings.HasSuffix(attachment.StoragePath, "-"+attachment.FileName) {
		t.Fatalf("expected path to end with sanitized name, got %q", attachment.StoragePath)
	}
	if len(storage.uploads) != 1 || storage.uploads[0] != attachment.StoragePath {
		t.Fatalf("expected one upload at %q, got %v", attachment.StoragePath, storage.uploads)
	}
}

func TestUploadRemovesBlobWhenMetadataInsertFails(t *testing.T) {
	storage := &stubObjectStorage{}
	writer := &stubAttachmentWriter{createErr: errors.New("insert failed")}
	service := newTestAttachmentService(storage, writer)

	_, err := service.Upload(context.Background(), 7, 99, AttachmentInput{
		FileName:    "progress.png",
		ContentType: "image/png",
		Content:     []byte{0x89},
	})
	if err == nil {
		t.Fatal("expected error from metadata insert")
	}
	if len(storage.uploads) != 1 {
		t.Fatalf("expected the binary to have been uploaded first, got %v", storage.uploads)
	}
	if len(storage.removed) != 1 || storage.removed[0] != storage.uploads[0] {
		t.Fatalf("expected orphaned blob removal, got removed=%v", storage.removed)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Relatório (final) #1!.pdf", "Relatorio (final) 1.pdf"},
		{"treino_semana-03.xlsx", "treino_semana-03.xlsx"},
		{"   foto   da    esteira.png", "foto da esteira.png"},
		{"---plano---de---treino.pdf", "plano-de-treino.pdf"},
		{"@#$%&*", "anexo"},
		{"", "anexo"},
	}

	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFileNameTruncates(t *testing.T) {
	long := strings.Repeat("a", 300) + ".pdf"
	got := SanitizeFileName(long)
	if len(got) > 120 {
		t.Fatalf("expected at most 120 chars, got %d", len(got))
	}
	if got == "" {
		t.Fatal("truncation must not empty the name")
	}
}

func TestSignedURLTTLClamping(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	if got := SignedURLTTL(nil, now); got != 3600 {
		t.Errorf("no expiry: expected ceiling 3600, got %d", got)
	}

	farExpiry := now.Add(10 * time.Hour)
	if got := SignedURLTTL(&farExpiry, now); got != 3600 {
		t.Errorf("far expiry: expected ceiling 3600, got %d", got)
	}

	nearExpiry := now.Add(10 * time.Minute)
	if got := SignedURLTTL(&nearExpiry, now); got != 600 {
		t.Errorf("near expiry: expected 600, got %d", got)
	}

	closeExpiry := now.Add(10 * time.Second)
	if got := SignedURLTTL(&closeExpiry, now); got != 60 {
		t.Errorf("close expiry: expected floor 60, got %d", got)
	}

	pastExpiry := now.Add(-time.Hour)
	if got := SignedURLTTL(&pastExpiry, now); got != 60 {
		t.Errorf("past expiry: expected floor 60, got %d", got)
	}
}

func TestResolveAccessURLWithholdsExpired(t *testing.T) {
	storage := &stubObjectStorage{}
	service := newTestAttachmentService(storage, &stubAttachmentWriter{})

	expiry := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	attachment := &models.Attachment{
		StoragePath: "7/99/x-checkin.png",
		IsEphemeral: true,
		ExpiresAt:   &expiry,
	}

	if err := service.ResolveAccessURL(context.Background(), attachment, expiry.Add(time.Second)); err != nil {
		t.Fatalf("ResolveAccessURL: %v", err)
	}
	if !attachment.Expired {
		t.Fatal("expected expired flag")
	}
	if attachment.SignedURL != nil {
		t.Fatalf("expected no signed url for expired attachment, got %q", *attachment.SignedURL)
	}
	if len(storage.signedPaths) != 0 {
		t.Fatalf("signing must not be attempted for expired attachments, got %v", storage.signedPaths)
	}
}

func TestResolveAccessURLClampsTTLToExpiry(t *testing.T) {
	storage := &stubObjectStorage{}
	service := newTestAttachmentService(storage, &stubAttachmentWriter{})

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(20 * time.Minute)
	attachment := &models.Attachment{
		StoragePath: "7/99/x-checkin.png",
		IsEphemeral: true,
		ExpiresAt:   &expiry,
	}

	if err := service.ResolveAccessURL(context.Background(), attachment, now); err != nil {
		t.Fatalf("ResolveAccessURL: %v", err)
	}
	if attachment.SignedURL == nil {
		t.Fatal("expected a signed url")
	}
	if len(storage.signedTTLs) != 1 || storage.signedTTLs[0] != 1200 {
		t.Fatalf("expected TTL 1200, got %v", storage.signedTTLs)
	}
}
