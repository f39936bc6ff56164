// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"log/slog"

	"github.com/jeranaias/assetdesk/internal/security"
)

// Audit event types emitted by the manager.
const (
	EventLoginSuccess    = "LOGIN_SUCCESS"
	EventLoginFailure    = "LOGIN_FAILURE"
	EventAccountLocked   = "ACCOUNT_LOCKED"
	EventRateLimited     = "RATE_LIMITED"
	EventLogout          = "LOGOUT"
	EventUserCreated     = "USER_CREATED"
	EventUserUpdated     = "USER_UPDATED"
	EventUserDeactivated = "USER_DEACTIVATED"
	EventPasswordChanged = "PASSWORD_CHANGED"
	EventMFAEnrolled     = "MFA_ENROLLED"
	EventMFADisabled     = "MFA_DISABLED"
)

// Auditor receives security events. Implementations must not block for long
// and must not fail the calling operation.
type Auditor interface {
	Record(ctx context.Context, event, actor string, success bool, metadata map[string]string)
}

// NopAuditor discards every event.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, string, string, bool, map[string]string) {}

// FileAuditor writes events to a security.AuditLogger.
type FileAuditor struct {
	log    *security.AuditLogger
	logger *slog.Logger
}

// NewFileAuditor returns an Auditor backed by al. Write failures are
// reported to logger.
func NewFileAuditor(al *security.AuditLogger, logger *slog.Logger) *FileAuditor {
	return &FileAuditor{log: al, logger: logger}
}

// Record implements Auditor.
func (a *FileAuditor) Record(_ context.Context, event, actor string, success bool, metadata map[string]string) {
	if a == nil || a.log == nil {
		return
	}
	ev := security.AuditEvent{
		EventType: event,
		Actor:     actor,
		Success:   success,
		Metadata:  metadata,
	}
	if target, ok := metadata["target"]; ok {
		ev.Target = target
	}
	if err := a.log.Log(ev); err != nil && a.logger != nil {
		a.logger.Error("audit write failed", "event", event, "error", err)
	}
}
