// Package audit is the append-only trail behind every AI-backed operation.
// One record captures what the user asked, what data was read, what the model
// claimed, and how the claim reconciled. Records are never updated or deleted.
package audit

import (
	"encoding/json"
	"time"
)

// Record is one AI-backed operation's full attribution trail. The raw model
// output and the unfiltered reconciliation detail are kept here even though
// client responses only carry the consent-filtered validated list.
type Record struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Operation string `json:"queryType"`
	QueryText string `json:"queryText"`

	// DataSnapshot is the payload the model saw, serialized.
	DataSnapshot json.RawMessage `json:"userDataSnapshot,omitempty"`
	// QueriesRun describes the storage reads observed during the operation.
	QueriesRun json.RawMessage `json:"queriesRun,omitempty"`

	Model     string `json:"aiModel"`
	RawOutput string `json:"aiResponse"`

	SelfReported []string `json:"aiReportedAttributes"`
	Accessed     []string `json:"attributesAccessed"`
	Validated    []string `json:"validatedAttributes"`
	Status       string   `json:"validationStatus"`

	CreatedAt    time.Time `json:"timestamp"`
	ProcessingMS int64     `json:"processingTimeMs"`
}
