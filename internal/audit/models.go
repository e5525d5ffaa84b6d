package audit

import "time"

// Actions recorded by the authorization core.
const (
	ActionTenantSwitched     = "tenant.switched"
	ActionEditRejectedLocked = "timecard.edit_rejected_locked"
	ActionBatchAnomaly       = "payroll.batch_anomaly"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	TenantID  string    `json:"tenantId,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	ClientIP  string    `json:"clientIp,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}
