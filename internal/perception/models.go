// Package perception maintains the "digital perception" snapshot: how the
// model characterizes a user from their financial behavior, with a dispute
// flow so users can challenge individual characterizations.
package perception

import "time"

// Attribute statuses.
const (
	StatusActive    = "active"
	StatusDisputed  = "disputed"
	StatusCorrected = "corrected"
)

// Attribute is one model-derived characterization of the user.
type Attribute struct {
	Category    string    `json:"category"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Evidence    []string  `json:"evidence"`
	LastUpdated time.Time `json:"lastUpdated"`
	Status      string    `json:"status"`
}

// Perception is the stored snapshot for one user.
type Perception struct {
	UserID       string      `json:"userId"`
	Summary      string      `json:"summary"`
	Attributes   []Attribute `json:"attributes"`
	LastAnalysis time.Time   `json:"lastAnalysis"`
	AuditID      string      `json:"queryLogId,omitempty"`
}

// Dispute records a user's challenge to one perception attribute.
type Dispute struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Category   string    `json:"category"`
	Label      string    `json:"label"`
	Reason     string    `json:"reason"`
	Correction string    `json:"proposedCorrection,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}
