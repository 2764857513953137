package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

// These tests run against a real database with the migrations applied.
// Set TEST_DATABASE_URL to enable them; they are skipped otherwise.

var (
	poolOnce sync.Once
	pool     *pgxpool.Pool
	poolErr  error
)

func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping repository integration tests")
	}

	poolOnce.Do(func() {
		pool, poolErr = pgxpool.New(context.Background(), dsn)
	})
	if poolErr != nil {
		t.Fatalf("connect: %v", poolErr)
	}
	return pool
}

func resetTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		TRUNCATE attachments, messages, threads, coach_assignments, profiles
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("reset tables: %v", err)
	}
}

func TestThreadRepositoryPairUniqueness(t *testing.T) {
	db := integrationPool(t)
	resetTables(t, db)
	ctx := context.Background()
	repo := NewThreadRepository(db)

	created, err := repo.Create(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = repo.Create(ctx, 1, 2)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected a unique violation for the duplicate pair, got %v", err)
	}

	found, err := repo.GetByPair(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetByPair: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected thread %d, got %d", created.ID, found.ID)
	}

	if _, err := repo.GetByID(ctx, created.ID+1000); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows for a missing thread, got %v", err)
	}
}

func TestMessageUnreadLifecycle(t *testing.T) {
	db := integrationPool(t)
	resetTables(t, db)
	ctx := context.Background()
	threads := NewThreadRepository(db)
	messages := NewMessageRepository(db)

	thread, err := threads.Create(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Create thread: %v", err)
	}

	body := "treino de amanhã"
	message, err := messages.Create(ctx, thread.ID, 2, 1, &body)
	if err != nil {
		t.Fatalf("Create message: %v", err)
	}
	if message.Status != models.MessageStatusSent || message.ReadAt != nil {
		t.Fatalf("expected a fresh sent message, got status=%s readAt=%v", message.Status, message.ReadAt)
	}

	if err := threads.SetLastMessage(ctx, thread.ID, message.SentAt, body, 2); err != nil {
		t.Fatalf("SetLastMessage: %v", err)
	}

	summaries, err := threads.ListForParticipant(ctx, 1)
	if err != nil {
		t.Fatalf("ListForParticipant: %v", err)
	}
	if len(summaries) != 1 || summaries[0].UnreadCount != 1 {
		t.Fatalf("expected one thread with unread 1, got %+v", summaries)
	}
	if summaries[0].LastMessagePreview == nil || *summaries[0].LastMessagePreview != body {
		t.Fatalf("expected persisted preview %q, got %v", body, summaries[0].LastMessagePreview)
	}

	// The sender's own view shows no unread.
	senderSummaries, err := threads.ListForParticipant(ctx, 2)
	if err != nil {
		t.Fatalf("ListForParticipant (sender): %v", err)
	}
	if senderSummaries[0].UnreadCount != 0 {
		t.Fatalf("expected sender unread 0, got %d", senderSummaries[0].UnreadCount)
	}

	if err := messages.MarkThreadRead(ctx, thread.ID, 1); err != nil {
		t.Fatalf("MarkThreadRead: %v", err)
	}
	summaries, err = threads.ListForParticipant(ctx, 1)
	if err != nil {
		t.Fatalf("ListForParticipant: %v", err)
	}
	if summaries[0].UnreadCount != 0 {
		t.Fatalf("expected unread 0 after mark read, got %d", summaries[0].UnreadCount)
	}

	page, total, err := messages.ListByThread(ctx, thread.ID, 50, 0)
	if err != nil {
		t.Fatalf("ListByThread: %v", err)
	}
	if total != 1 || len(page) != 1 {
		t.Fatalf("expected one message, got total=%d len=%d", total, len(page))
	}
	if page[0].Status != models.MessageStatusRead || page[0].ReadAt == nil {
		t.Fatalf("expected the message stamped read, got status=%s readAt=%v", page[0].Status, page[0].ReadAt)
	}
}

func TestAttachmentCascadeOnMessageDelete(t *testing.T) {
	db := integrationPool(t)
	resetTables(t, db)
	ctx := context.Background()
	threads := NewThreadRepository(db)
	messages := NewMessageRepository(db)
	attachments := NewAttachmentRepository(db)

	thread, err := threads.Create(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Create thread: %v", err)
	}
	message, err := messages.Create(ctx, thread.ID, 1, 2, nil)
	if err != nil {
		t.Fatalf("Create message: %v", err)
	}

	expiry := time.Now().Add(24 * time.Hour)
	attachment := &models.Attachment{
		MessageID:   message.ID,
		Bucket:      "chat-attachments",
		StoragePath: "1/1/x-checkin.png",
		FileName:    "checkin.png",
		ContentType: "image/png",
		SizeBytes:   4,
		IsEphemeral: true,
		ExpiresAt:   &expiry,
	}
	if err := attachments.Create(ctx, attachment); err != nil {
		t.Fatalf("Create attachment: %v", err)
	}
	if attachment.ID == 0 || attachment.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and created_at, got %+v", attachment)
	}

	if err := messages.Delete(ctx, message.ID); err != nil {
		t.Fatalf("Delete message: %v", err)
	}

	grouped, err := attachments.ListByMessageIDs(ctx, []int64{message.ID})
	if err != nil {
		t.Fatalf("ListByMessageIDs: %v", err)
	}
	if len(grouped) != 0 {
		t.Fatalf("expected attachment rows to cascade with the message, got %v", grouped)
	}
}

func TestProfileAssignments(t *testing.T) {
	db := integrationPool(t)
	resetTables(t, db)
	ctx := context.Background()
	profiles := NewProfileRepository(db)

	_, err := db.Exec(ctx, `
		INSERT INTO profiles (user_id, full_name, role) VALUES
			(1, 'Cliente Um', 'client'),
			(2, 'Coach Dois', 'coach')
	`)
	if err != nil {
		t.Fatalf("seed profiles: %v", err)
	}
	if _, err := db.Exec(ctx, `INSERT INTO coach_assignments (coach_id, client_id) VALUES (2, 1)`); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	found, err := profiles.GetByUserIDs(ctx, []int64{1, 2, 999})
	if err != nil {
		t.Fatalf("GetByUserIDs: %v", err)
	}
	if len(found) != 2 || found[2].FullName != "Coach Dois" {
		t.Fatalf("expected both seeded profiles, got %v", found)
	}

	coachIDs, err := profiles.ListAssignedCounterpartIDs(ctx, 1, models.RoleClient)
	if err != nil {
		t.Fatalf("ListAssignedCounterpartIDs (client): %v", err)
	}
	if len(coachIDs) != 1 || coachIDs[0] != 2 {
		t.Fatalf("expected assigned coach [2], got %v", coachIDs)
	}

	clientIDs, err := profiles.ListAssignedCounterpartIDs(ctx, 2, models.RoleCoach)
	if err != nil {
		t.Fatalf("ListAssignedCounterpartIDs (coach): %v", err)
	}
	if len(clientIDs) != 1 || clientIDs[0] != 1 {
		t.Fatalf("expected assigned client [1], got %v", clientIDs)
	}

	adminIDs, err := profiles.ListAssignedCounterpartIDs(ctx, 3, models.RoleAdmin)
	if err != nil {
		t.Fatalf("ListAssignedCounterpartIDs (admin): %v", err)
	}
	if adminIDs != nil {
		t.Fatalf("expected no assignments for non-participant roles, got %v", adminIDs)
	}
}
