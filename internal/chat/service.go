// Package chat answers free-form banking questions through the attribution
// pipeline, with keyword-based query classification.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"glassbank/internal/attribution"
	"glassbank/internal/reasoning"
	"glassbank/pkg/apperrors"
)

// Answer is the chat response together with the attribution detail.
type Answer struct {
	Response       string   `json:"response"`
	AttributesUsed []string `json:"attributes_used"`
	QueryType      string   `json:"query_type"`
	Confidence     float64  `json:"confidence,omitempty"`
	Status         string   `json:"validationStatus"`
	AuditID        string   `json:"queryLogId,omitempty"`
}

// Service answers conversational queries.
type Service struct {
	pipeline *attribution.Pipeline
	logger   *slog.Logger
}

func NewService(pipeline *attribution.Pipeline, logger *slog.Logger) *Service {
	return &Service{pipeline: pipeline, logger: logger}
}

const chatSystem = `You are a concise and transparent AI banking assistant.
CRITICAL RULES:
- Keep responses SHORT and DIRECT (under 300 words)
- Answer only what's asked, without unnecessary explanations
- Use markdown: **bold** for numbers, bullet points for lists
- ALWAYS report attributes used in the format: user.income, accounts.balance, transactions.amount, etc.
- Be transparent but brief`

// Query answers one user question. Chat validation is lenient: well-formed
// self-reported identifiers with a known topic prefix are accepted even when
// the keyword-selected extraction window did not cover them.
func (s *Service) Query(ctx context.Context, userID, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, apperrors.New(apperrors.CodeValidation, "query must not be empty")
	}

	out, err := s.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: QueryType(query),
		QueryText: query,
		System:    chatSystem,
		Lenient:   true,
		BuildPrompt: func(data map[string]any) string {
			return chatPrompt(query, data)
		},
		MaxTokens: 5000,
	})
	if err != nil {
		return Answer{}, err
	}

	return Answer{
		Response:       reasoning.Text(out.Parsed["response"], ""),
		AttributesUsed: out.Attributes,
		QueryType:      QueryType(query),
		Confidence:     reasoning.Number(out.Parsed["confidence"], 0),
		Status:         string(out.Status),
		AuditID:        out.AuditID,
	}, nil
}

// queryTypes maps classification labels to trigger keywords. First label
// with any keyword contained in the query wins.
var queryTypes = []struct {
	label    string
	keywords []string
}{
	{"loan", []string{"loan", "borrow", "lend", "eligibility"}},
	{"goal", []string{"goal", "target", "saving goal", "milestone"}},
	{"account", []string{"account", "balance", "savings", "checking"}},
	{"transaction", []string{"transaction", "spending", "payment", "purchase"}},
	{"offer", []string{"offer", "promotion", "discount", "deal"}},
	{"explanation", []string{"explain", "what", "how", "why", "profile"}},
}

// QueryType classifies a query by keyword containment.
func QueryType(query string) string {
	lower := strings.ToLower(query)
	for _, qt := range queryTypes {
		for _, kw := range qt.keywords {
			if strings.Contains(lower, kw) {
				return qt.label
			}
		}
	}
	return "general"
}

func chatPrompt(query string, data map[string]any) string {
	payload, _ := json.MarshalIndent(data, "", "  ")
	return fmt.Sprintf(`User Query: %s

Available Data:
%s

INSTRUCTIONS:
- Answer the question CONCISELY (max 300 words)
- Focus on key insights only
- Use markdown formatting
- List ALL attributes used in 'attributes_used' array

Return JSON:
{
  "response": "Your concise markdown response (under 300 words)",
  "attributes_used": ["user.income", "accounts.balance"],
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation"
}`, query, payload)
}
