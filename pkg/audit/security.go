// Package audit provides security audit logging for SIEM consumption.
// Events are written as structured JSON under the "security_audit" logger so
// they can be filtered and alerted on separately from application logs.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventUnauthorizedAction is logged when an actor tries a workflow action
	// their role does not permit.
	EventUnauthorizedAction SecurityEventType = "unauthorized_workflow_action"
	// EventEscalation is logged when a higher level acts on a lower stage.
	EventEscalation SecurityEventType = "workflow_escalation"
	// EventDegradedConsistency is logged when a project status was written
	// without its workflow record.
	EventDegradedConsistency SecurityEventType = "degraded_consistency"
	// EventInjectionAttempt is logged when libinjection flags submitted text.
	EventInjectionAttempt SecurityEventType = "injection_attempt"
	// EventLoginFailure is logged for rejected credentials.
	EventLoginFailure SecurityEventType = "login_failure"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ProjectID *uuid.UUID        `json:"project_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// WorkflowActionDetails describes a workflow action that was refused or escalated.
type WorkflowActionDetails struct {
	Role   string `json:"role"`
	Stage  string `json:"stage"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// InjectionDetails contains specifics of a detected injection attempt.
type InjectionDetails struct {
	Field       string `json:"field"`
	Kind        string `json:"kind"` // sqli or xss
	Fingerprint string `json:"fingerprint,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger   *zap.Logger
	degraded atomic.Int64
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogUnauthorizedAction records a refused workflow action.
func (a *SecurityAuditor) LogUnauthorizedAction(ctx context.Context, projectID uuid.UUID, actorID string, details WorkflowActionDetails) {
	a.emit(ctx, zapcore.WarnLevel, "Unauthorized workflow action", SecurityEvent{
		EventType: EventUnauthorizedAction,
		ProjectID: &projectID,
		UserID:    actorID,
		Details:   details,
		Severity:  SeverityWarning,
	}, zap.String("role", details.Role), zap.String("stage", details.Stage), zap.String("action", details.Action))
}

// LogEscalation records a higher-level official acting on a lower stage.
func (a *SecurityAuditor) LogEscalation(ctx context.Context, projectID uuid.UUID, actorID string, details WorkflowActionDetails) {
	a.emit(ctx, zapcore.InfoLevel, "Workflow action escalated", SecurityEvent{
		EventType: EventEscalation,
		ProjectID: &projectID,
		UserID:    actorID,
		Details:   details,
		Severity:  SeverityInfo,
	}, zap.String("role", details.Role), zap.String("stage", details.Stage))
}

// LogDegradedConsistency records a status change applied without a workflow
// record and bumps the degraded counter.
func (a *SecurityAuditor) LogDegradedConsistency(ctx context.Context, projectID uuid.UUID, actorID, action, status string) {
	a.degraded.Add(1)
	a.emit(ctx, zapcore.ErrorLevel, "Project status written without workflow record", SecurityEvent{
		EventType: EventDegradedConsistency,
		ProjectID: &projectID,
		UserID:    actorID,
		Details: map[string]string{
			"action": action,
			"status": status,
		},
		Severity: SeverityCritical,
	}, zap.String("action", action), zap.String("status", status))
}

// DegradedCount returns how many degraded writes were logged since start.
func (a *SecurityAuditor) DegradedCount() int64 {
	return a.degraded.Load()
}

// LogInjectionAttempt records text rejected by injection screening.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails, clientIP string) {
	a.emit(ctx, zapcore.ErrorLevel, "Injection attempt detected", SecurityEvent{
		EventType: EventInjectionAttempt,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  SeverityCritical,
	}, zap.String("field", details.Field), zap.String("kind", details.Kind), zap.String("fingerprint", details.Fingerprint))
}

// LogLoginFailure records rejected credentials. The password is never logged.
func (a *SecurityAuditor) LogLoginFailure(ctx context.Context, loginID, reason, clientIP string) {
	a.emit(ctx, zapcore.WarnLevel, "Login failed", SecurityEvent{
		EventType: EventLoginFailure,
		ClientIP:  clientIP,
		Details: map[string]string{
			"login_id": loginID,
			"reason":   reason,
		},
		Severity: SeverityWarning,
	}, zap.String("login_id", loginID))
}

func (a *SecurityAuditor) emit(ctx context.Context, level zapcore.Level, msg string, event SecurityEvent, fields ...zap.Field) {
	event.Timestamp = time.Now().UTC()
	if event.UserID == "" {
		event.UserID = auth.GetUserIDFromContext(ctx)
	}

	// Marshaling known types does not fail.
	eventJSON, _ := json.Marshal(event)

	base := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	}
	if event.ProjectID != nil {
		base = append(base, zap.String("project_id", event.ProjectID.String()))
	}
	if event.ClientIP != "" {
		base = append(base, zap.String("client_ip", event.ClientIP))
	}

	if ce := a.logger.Check(level, msg); ce != nil {
		ce.Write(append(base, fields...)...)
	}
}
