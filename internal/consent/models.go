// Package consent is the per-attribute allow/deny registry. Absent entries
// default to allowed; users restrict from there.
package consent

import "time"

// PermissionSet is one user's attribute-level consent decisions.
type PermissionSet struct {
	UserID      string          `json:"userId"`
	Permissions map[string]bool `json:"permissions"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"lastUpdated"`
}

// Allowed reports whether an attribute key may feed AI analysis.
// Absent keys are allowed: consent is opt-out.
func (p PermissionSet) Allowed(key string) bool {
	allowed, ok := p.Permissions[key]
	if !ok {
		return true
	}
	return allowed
}

// Counts returns (allowed, total) over the configured permissions.
func (p PermissionSet) Counts() (int, int) {
	allowed := 0
	for _, ok := range p.Permissions {
		if ok {
			allowed++
		}
	}
	return allowed, len(p.Permissions)
}

// Record is one consent-change event kept for the compliance trail.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ConsentType string    `json:"consentType"`
	Status      string    `json:"status"`
	Purpose     string    `json:"purpose"`
	DataTypes   []string  `json:"dataTypes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Score summarizes how restrictive a user's permissions are. Higher means
// more attributes denied to AI analysis.
type Score struct {
	Score             int    `json:"score"`
	MaxScore          int    `json:"maxScore"`
	AllowedAttributes int    `json:"allowedAttributes"`
	DeniedAttributes  int    `json:"deniedAttributes"`
	TotalAttributes   int    `json:"totalAttributes"`
	Message           string `json:"message"`
}
