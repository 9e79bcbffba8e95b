package models

import "time"

type AuditAction string

const (
	AuditLoginSuccess              AuditAction = "LOGIN_SUCCESS"
	AuditLoginUserNotFound         AuditAction = "LOGIN_FAILED_USER_NOT_FOUND"
	AuditLoginWrongPassword        AuditAction = "LOGIN_FAILED_WRONG_PASSWORD"
	AuditLoginUserInactive         AuditAction = "LOGIN_FAILED_USER_INACTIVE"
	AuditLoginError                AuditAction = "LOGIN_ERROR"
	AuditUserRegistered            AuditAction = "USER_REGISTERED"
	AuditRegistrationEmailExists   AuditAction = "REGISTRATION_FAILED_EMAIL_EXISTS"
	AuditRegistrationError         AuditAction = "REGISTRATION_ERROR"
	AuditPasswordChanged           AuditAction = "PASSWORD_CHANGED"
	AuditPasswordChangeFailed      AuditAction = "PASSWORD_CHANGE_FAILED"
	AuditSensitiveDataAccess       AuditAction = "SENSITIVE_DATA_ACCESS"
	AuditSensitiveDataUpdate       AuditAction = "SENSITIVE_DATA_UPDATE"
	AuditSensitiveDataUpdateError  AuditAction = "SENSITIVE_DATA_UPDATE_ERROR"
	AuditSensitiveDataDelete       AuditAction = "SENSITIVE_DATA_DELETE"
	AuditEncryptionError           AuditAction = "ENCRYPTION_ERROR"
	AuditDecryptionError           AuditAction = "DECRYPTION_ERROR"
	AuditUserSearch                AuditAction = "USER_SEARCH"
	AuditPrivacySettingsChange     AuditAction = "PRIVACY_SETTINGS_CHANGE"
	AuditDataExport                AuditAction = "DATA_EXPORT"
	AuditUnauthorizedAccessAttempt AuditAction = "UNAUTHORIZED_ACCESS_ATTEMPT"
	AuditSuspiciousActivity        AuditAction = "SUSPICIOUS_ACTIVITY_DETECTED"
	AuditSystemMaintenance         AuditAction = "SYSTEM_MAINTENANCE"
)

type ResourceType string

const (
	ResourceUser     ResourceType = "USER"
	ResourceArtist   ResourceType = "ARTIST"
	ResourceAlbum    ResourceType = "ALBUM"
	ResourceSong     ResourceType = "SONG"
	ResourceContract ResourceType = "CONTRACT"
	ResourceSale     ResourceType = "SALE"
	ResourceFile     ResourceType = "FILE"
	ResourceSystem   ResourceType = "SYSTEM"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AuditEntry is an append-only record in security_audit. Details must never
// contain credentials or password hashes.
type AuditEntry struct {
	UserID       *int64         `json:"user_id,omitempty"`
	Action       AuditAction    `json:"action"`
	ResourceType ResourceType   `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	RiskLevel    RiskLevel      `json:"risk_level"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

type AuditFilter struct {
	UserID    *int64
	Action    AuditAction
	RiskLevel RiskLevel
	From      *time.Time
	To        *time.Time
}

// SecurityMetrics summarises audit entries over a time window.
type SecurityMetrics struct {
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	Total       int64                 `json:"total"`
	ByAction    map[AuditAction]int64 `json:"by_action"`
	ByRisk      map[RiskLevel]int64   `json:"by_risk"`
	UniqueIPs   int                   `json:"unique_ips"`
	UniqueUsers int                   `json:"unique_users"`
}

// AnalyticsEvent is one metric event appended to the analytics collection.
type AnalyticsEvent struct {
	EntityType string             `json:"entity_type"`
	EntityID   int64              `json:"entity_id"`
	EventType  string             `json:"event_type"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	UserID     *int64             `json:"user_id,omitempty"`
	SessionID  string             `json:"session_id,omitempty"`
	Platform   string             `json:"platform,omitempty"`
	Location   map[string]any     `json:"location,omitempty"`
	Device     map[string]any     `json:"device,omitempty"`
	CreatedAt  *time.Time         `json:"created_at,omitempty"`
}

// Analytics event types.
const (
	EventPlay     = "play"
	EventDownload = "download"
	EventSocial   = "social"
	EventSale     = "sale"
	EventView     = "view"
)

// EntityAnalytics aggregates events for one entity over a window.
type EntityAnalytics struct {
	EntityType  string             `json:"entity_type"`
	EntityID    int64              `json:"entity_id"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Events      int64              `json:"events"`
	UniqueUsers int                `json:"unique_users"`
	ByEventType map[string]int64   `json:"by_event_type"`
	Totals      map[string]float64 `json:"totals"`
	Realtime    map[string]any     `json:"realtime,omitempty"`
}
