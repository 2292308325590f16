package model

import "time"

// Audit actions recorded by the auth layer.
const (
	AuditLoginSucceeded  = "auth.login.succeeded"
	AuditLoginFailed     = "auth.login.failed"
	AuditLoginLocked     = "auth.login.locked"
	AuditBootstrap       = "auth.bootstrap"
	AuditPasswordRehash  = "auth.password.rehashed"
	AuditUserCreated     = "user.created"
	AuditUserRoleChanged = "user.role_changed"
	AuditUserActivation  = "user.activation_changed"
	AuditPasswordForced  = "user.password_forced"
	AuditUsersImported   = "user.imported"
)

const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
	AuditStatusDenied  = "denied"
)

type AuditActor struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	IP       string `json:"ip,omitempty"`
}

type AuditEntry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	Status       string         `json:"status"`
	Actor        AuditActor     `json:"actor"`
	TargetUserID string         `json:"target_user_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	From    string
	To      string
	Page    int
	Limit   int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
