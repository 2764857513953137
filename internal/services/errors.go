package services

import "errors"

// Every failure kind the messaging core can raise. The route layer maps
// each to its own response; none are coalesced here.
var (
	ErrThreadNotFound     = errors.New("thread not found")
	ErrThreadForbidden    = errors.New("viewer is not a thread participant")
	ErrMissingIdentifier  = errors.New("thread id or counterpart id required")
	ErrRoleUnknown        = errors.New("viewer role does not resolve to client or coach")
	ErrCreateFailed       = errors.New("thread create failed")
	ErrEmptyMessage       = errors.New("message needs a body or at least one attachment")
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
	ErrAttachmentType     = errors.New("attachment content type not allowed")
	ErrEphemeralOnlyImage = errors.New("ephemeral attachments must be images")
	ErrInvalidAttachment  = errors.New("attachment has no content")
	ErrUnauthenticated    = errors.New("viewer id missing")
	ErrProfilesFetch      = errors.New("profiles fetch failed")
	ErrUnreadFetch        = errors.New("unread fetch failed")
)
