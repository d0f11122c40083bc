package services

import (
	"encoding/json"

	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/models"
)

// AuditService records account actions.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditLog represents an audit log entry to be recorded.
type AuditLog struct {
	Details      map[string]interface{}
	UserID       string
	Email        string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
}

// Log records an audit log entry to the database.
func (s *AuditService) Log(log AuditLog) error {
	var detailsJSON string
	if log.Details != nil {
		bytes, err := json.Marshal(log.Details)
		if err == nil {
			detailsJSON = string(bytes)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_logs (user_id, email, action, resource_type, resource_id, ip_address, user_agent, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, log.UserID, log.Email, log.Action, log.ResourceType, log.ResourceID, log.IPAddress, log.UserAgent, detailsJSON)

	return err
}

// LogAction records action on a resource owned by account.
func (s *AuditService) LogAction(account *models.Account, action, resourceType, resourceID, ip, userAgent string, details map[string]interface{}) error {
	return s.Log(AuditLog{
		UserID:       account.ID,
		Email:        account.Email,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details:      details,
	})
}

// AuditLogEntry represents an audit log record from the database.
type AuditLogEntry struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	UserAgent    string `json:"user_agent"`
	Details      string `json:"details"`
	CreatedAt    string `json:"created_at"`
	ID           int64  `json:"id"`
}

// GetLogs returns the account's audit logs, newest first.
func (s *AuditService) GetLogs(userID string, limit, offset int) ([]AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, email, action, resource_type, resource_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize empty slice instead of nil to return [] instead of null in JSON
	logs := make([]AuditLogEntry, 0)
	for rows.Next() {
		var log AuditLogEntry
		var email, resourceID, ipAddress, userAgent, details *string

		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&email,
			&log.Action,
			&log.ResourceType,
			&resourceID,
			&ipAddress,
			&userAgent,
			&details,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}

		log.Email = deref(email)
		log.ResourceID = deref(resourceID)
		log.IPAddress = deref(ipAddress)
		log.UserAgent = deref(userAgent)
		log.Details = deref(details)

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
