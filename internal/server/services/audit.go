package services

import (
	"context"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/users"
)

// suspiciousThresholds is the number of actions by one user within
// suspiciousWindow that flags the account.
var suspiciousThresholds = map[models.AuditAction]int64{
	models.AuditLoginWrongPassword:        5,
	models.AuditUnauthorizedAccessAttempt: 3,
	models.AuditEncryptionError:           10,
	models.AuditDecryptionError:           10,
	models.AuditSensitiveDataAccess:       50,
}

const suspiciousWindow = time.Hour

var highRisk = mapset.NewSet(models.RiskHigh, models.RiskCritical)

// AuditService records security events in the security_audit collection.
// Recording never fails the caller: store errors are logged and dropped.
type AuditService struct {
	store  documents.Store
	logger logging.Logger
	now    func() time.Time
}

func NewAuditService(store documents.Store, logger logging.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger.With("module", "audit"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends entry. IP and user agent default to the request metadata
// in ctx, and risk level defaults to LOW.
func (s *AuditService) Record(ctx context.Context, entry models.AuditEntry) {
	meta := RequestMetaFrom(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IP
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.RiskLevel == "" {
		entry.RiskLevel = models.RiskLow
	}
	entry.CreatedAt = nil

	doc, err := documents.ToFields(entry)
	if err == nil {
		err = s.store.Append(ctx, documents.SecurityAudit, doc)
	}
	if err != nil {
		s.logger.Error(ctx, "failed to record audit entry", "action", entry.Action, "error", err)
		return
	}

	if highRisk.Contains(entry.RiskLevel) {
		s.logger.Warn(ctx, "high risk security action",
			"action", entry.Action, "risk_level", entry.RiskLevel, "user_id", entry.UserID, "ip", entry.IPAddress)
	}

	if entry.UserID != nil && entry.Action != models.AuditSuspiciousActivity {
		s.detectSuspicious(ctx, *entry.UserID, entry.Action)
	}
}

// detectSuspicious flags the user once, when the count for action within the
// window reaches its threshold.
func (s *AuditService) detectSuspicious(ctx context.Context, userID int64, action models.AuditAction) {
	threshold, ok := suspiciousThresholds[action]
	if !ok {
		return
	}

	from := s.now().Add(-suspiciousWindow)
	_, count, err := s.store.Find(ctx, documents.SecurityAudit, documents.Query{
		Equals: documents.Fields{"user_id": userID, "action": string(action)},
		From:   &from,
		Limit:  1,
	})
	if err != nil {
		s.logger.Error(ctx, "suspicious activity check failed", "user_id", userID, "error", err)
		return
	}
	if count != threshold {
		return
	}

	s.Record(ctx, models.AuditEntry{
		UserID:       &userID,
		Action:       models.AuditSuspiciousActivity,
		ResourceType: models.ResourceUser,
		Details:      map[string]any{"detected_action": string(action), "count": count, "window": suspiciousWindow.String()},
		RiskLevel:    models.RiskCritical,
	})
}

// CodecFailure records a sensitive field that failed to encrypt or decrypt.
// It is installed as the users codec failure hook.
func (s *AuditService) CodecFailure(ctx context.Context, f users.FieldFailure) {
	action := models.AuditDecryptionError
	if f.Op == "encrypt" {
		action = models.AuditEncryptionError
	}
	entry := models.AuditEntry{
		Action:       action,
		ResourceType: models.ResourceUser,
		Details:      map[string]any{"field": f.Field, "error": f.Err.Error()},
		RiskLevel:    models.RiskHigh,
	}
	if f.UserID > 0 {
		id := f.UserID
		entry.UserID = &id
		entry.ResourceID = strconv.FormatInt(id, 10)
	}
	s.Record(ctx, entry)
}

// List returns one user's audit entries, newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter, page models.PageRequest) ([]models.AuditEntry, int64, error) {
	q := documents.Query{
		Equals: documents.Fields{},
		From:   filter.From,
		To:     filter.To,
		Skip:   page.Offset(),
		Limit:  page.Limit,
		Newest: true,
	}
	if filter.UserID != nil {
		q.Equals["user_id"] = *filter.UserID
	}
	if filter.Action != "" {
		q.Equals["action"] = string(filter.Action)
	}
	if filter.RiskLevel != "" {
		q.Equals["risk_level"] = string(filter.RiskLevel)
	}

	docs, total, err := s.store.Find(ctx, documents.SecurityAudit, q)
	if err != nil {
		return nil, 0, err
	}

	out := make([]models.AuditEntry, 0, len(docs))
	for _, d := range docs {
		var e models.AuditEntry
		if err := documents.FromFields(d, &e); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, nil
}

// Metrics summarises every entry in [from, to).
func (s *AuditService) Metrics(ctx context.Context, from, to time.Time) (*models.SecurityMetrics, error) {
	docs, total, err := s.store.Find(ctx, documents.SecurityAudit, documents.Query{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	m := &models.SecurityMetrics{
		From:     from,
		To:       to,
		Total:    total,
		ByAction: map[models.AuditAction]int64{},
		ByRisk:   map[models.RiskLevel]int64{},
	}
	ips := mapset.NewThreadUnsafeSet[string]()
	users := mapset.NewThreadUnsafeSet[int64]()
	for _, d := range docs {
		if a, ok := d["action"].(string); ok {
			m.ByAction[models.AuditAction(a)]++
		}
		if r, ok := d["risk_level"].(string); ok {
			m.ByRisk[models.RiskLevel(r)]++
		}
		if ip, ok := d["ip_address"].(string); ok && ip != "" {
			ips.Add(ip)
		}
		if id, ok := d.Int64("user_id"); ok {
			users.Add(id)
		}
	}
	m.UniqueIPs = ips.Cardinality()
	m.UniqueUsers = users.Cardinality()
	return m, nil
}

// Purge deletes entries older than retention. Backends with a TTL index
// expire entries on their own; this covers the rest.
func (s *AuditService) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOlderThan(ctx, documents.SecurityAudit, s.now().Add(-retention))
}
