package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
	"github.com/croquete1/Fitness-Pro-sub002/internal/repository"
	"github.com/jackc/pgx/v5"
)

// ThreadRef identifies the conversation an operation targets: an explicit
// thread id, or a counterpart id for pair-based resolution.
type ThreadRef struct {
	ThreadID        *int64
	CounterpartID   *int64
	CreateIfMissing bool
}

// ResolvedThread is the outcome of EnsureThread: the canonical thread plus
// which side the viewer is not.
type ResolvedThread struct {
	Thread          *models.Thread
	ClientID        int64
	CoachID         int64
	CounterpartID   int64
	CounterpartRole models.Role
	Created         bool
}

// EnsureThread finds (or lazily creates) the single thread for a
// (client, coach) pair.
//
// By thread id, the viewer must be one of the two participants. By
// counterpart id, the pair is derived from the viewer's role; a role that
// is not CLIENT or COACH is rejected outright rather than silently treated
// as the coach side. Creation races resolve through the unique constraint
// on (client_id, coach_id): a violating insert means someone else created
// the thread first, so the lookup is retried.
func (s *MessagingService) EnsureThread(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
	ref ThreadRef,
) (*ResolvedThread, error) {
	if ref.ThreadID != nil {
		return s.resolveByThreadID(ctx, viewerID, *ref.ThreadID)
	}
	if ref.CounterpartID != nil {
		return s.resolveByCounterpart(ctx, viewerID, viewerRole, *ref.CounterpartID, ref.CreateIfMissing)
	}
	return nil, ErrMissingIdentifier
}

func (s *MessagingService) resolveByThreadID(
	ctx context.Context,
	viewerID int64,
	threadID int64,
) (*ResolvedThread, error) {
	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if !thread.HasParticipant(viewerID) {
		return nil, ErrThreadForbidden
	}

	counterpartID, counterpartRole := thread.Counterpart(viewerID)
	return &ResolvedThread{
		Thread:          thread,
		ClientID:        thread.ClientID,
		CoachID:         thread.CoachID,
		CounterpartID:   counterpartID,
		CounterpartRole: counterpartRole,
	}, nil
}

func (s *MessagingService) resolveByCounterpart(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
	counterpartID int64,
	createIfMissing bool,
) (*ResolvedThread, error) {
	if counterpartID <= 0 || counterpartID == viewerID {
		return nil, ErrMissingIdentifier
	}

	var clientID, coachID int64
	var counterpartRole models.Role
	switch viewerRole {
	case models.RoleClient:
		clientID, coachID = viewerID, counterpartID
		counterpartRole = models.RoleCoach
	case models.RoleCoach:
		clientID, coachID = counterpartID, viewerID
		counterpartRole = models.RoleClient
	default:
		return nil, ErrRoleUnknown
	}

	resolved := &ResolvedThread{
		ClientID:        clientID,
		CoachID:         coachID,
		CounterpartID:   counterpartID,
		CounterpartRole: counterpartRole,
	}

	thread, err := s.threadRepo.GetByPair(ctx, clientID, coachID)
	if err == nil {
		resolved.Thread = thread
		return resolved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if !createIfMissing {
		return nil, ErrThreadNotFound
	}

	thread, err = s.threadRepo.Create(ctx, clientID, coachID)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			// Lost the race: the other participant created the pair first.
			thread, err = s.threadRepo.GetByPair(ctx, clientID, coachID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
			}
			resolved.Thread = thread
			return resolved, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	resolved.Thread = thread
	resolved.Created = true
	return resolved, nil
}
