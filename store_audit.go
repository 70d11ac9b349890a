package goGate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGate/session"
	"github.com/google/uuid"
)

// AuditErrorCode classifies the error attached to a failed audit event.
type AuditErrorCode string

const (
	auditErrAuthenticator AuditErrorCode = "authenticator_fault"
	auditErrTokenIssue    AuditErrorCode = "token_issue_failed"
	auditErrPersist       AuditErrorCode = "persist_failed"
	auditErrCorrupt       AuditErrorCode = "identity_corrupt"
	auditErrUnavailable   AuditErrorCode = "backend_unavailable"
	auditErrInternal      AuditErrorCode = "internal_error"
)

func (s *Store) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	id Identity,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    id.ID,
		Email:     id.Email,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthenticatorFault):
		return auditErrAuthenticator
	case errors.Is(err, ErrTokenIssue):
		return auditErrTokenIssue
	case errors.Is(err, ErrStoragePersist):
		return auditErrPersist
	case errors.Is(err, session.ErrIdentityCorrupt),
		errors.Is(err, session.ErrUnsupportedSchema):
		return auditErrCorrupt
	case errors.Is(err, session.ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
