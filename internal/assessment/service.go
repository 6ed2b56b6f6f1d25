// Package assessment runs AI-backed eligibility and profile analysis on top
// of the attribution pipeline.
package assessment

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

// Factor is one weighted input to a loan decision. Impact is one of
// positive, negative or neutral.
type Factor struct {
	Name   string  `json:"name"`
	Value  any     `json:"value"`
	Weight float64 `json:"weight"`
	Impact string  `json:"impact"`
	Reason string  `json:"reason"`
}

// LoanRequest is a loan eligibility query.
type LoanRequest struct {
	Amount   float64 `json:"loanAmount"`
	LoanType string  `json:"loanType"`
	Purpose  string  `json:"purpose,omitempty"`
}

// LoanDecision is the assessed outcome together with the attribution detail.
type LoanDecision struct {
	Decision       string   `json:"decision"`
	Confidence     float64  `json:"confidence"`
	Explanation    string   `json:"explanation"`
	AttributesUsed []string `json:"attributes_used"`
	Factors        []Factor `json:"factors"`
	Status         string   `json:"validationStatus"`
	AuditID        string   `json:"queryLogId,omitempty"`
}

// ProfileExplanation summarizes the user's financial profile.
type ProfileExplanation struct {
	Summary            string         `json:"profile_summary"`
	Insights           map[string]any `json:"ai_insights"`
	AttributesAnalyzed []string       `json:"attributes_analyzed"`
	Recommendations    []string       `json:"recommendations"`
	AuditID            string         `json:"queryLogId,omitempty"`
}

// Service assesses loan eligibility and explains profiles.
type Service struct {
	pipeline *attribution.Pipeline
	logger   *slog.Logger
}

func NewService(pipeline *attribution.Pipeline, logger *slog.Logger) *Service {
	return &Service{pipeline: pipeline, logger: logger}
}

const advisorSystem = "You are a transparent AI banking advisor. Keep responses concise and focused."

// AssessLoanEligibility runs the full attribution pipeline for a loan query.
// The model's loose output is coerced field by field; a malformed factor is
// replaced by a defaulted one rather than failing the whole assessment.
func (s *Service) AssessLoanEligibility(ctx context.Context, userID string, req LoanRequest) (LoanDecision, error) {
	if req.Amount <= 0 {
		return LoanDecision{}, apperrors.New(apperrors.CodeValidation, "loan amount must be positive")
	}
	loanType := req.LoanType
	if loanType == "" {
		loanType = "personal"
	}

	queryText := fmt.Sprintf("Loan eligibility check for %.0f (%s)", req.Amount, loanType)
	if req.Purpose != "" {
		queryText += ": " + req.Purpose
	}

	out, err := s.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: "loan_eligibility",
		QueryText: queryText,
		System:    advisorSystem,
		BuildPrompt: func(data map[string]any) string {
			return loanPrompt(data, req.Amount, loanType)
		},
		MaxTokens: 800,
	})
	if err != nil {
		return LoanDecision{}, err
	}

	decision := reasoning.Text(out.Parsed["decision"], "requires_review")
	switch decision {
	case "approved", "denied", "requires_review":
	default:
		decision = "requires_review"
	}

	return LoanDecision{
		Decision:       decision,
		Confidence:     clamp01(reasoning.Number(out.Parsed["confidence"], 0.5)),
		Explanation:    reasoning.Text(out.Parsed["explanation"], ""),
		AttributesUsed: out.Attributes,
		Factors:        parseFactors(ctx, s.logger, out.Parsed["factors"]),
		Status:         string(out.Status),
		AuditID:        out.AuditID,
	}, nil
}

// ExplainProfile produces a profile summary with insights and
// recommendations. Aspects narrow the focus when provided.
func (s *Service) ExplainProfile(ctx context.Context, userID string, aspects []string) (ProfileExplanation, error) {
	queryText := "Explain my profile"
	aspectsText := ""
	if len(aspects) > 0 {
		aspectsText = " Focus on: " + strings.Join(aspects, ", ")
		queryText += aspectsText
	}

	out, err := s.pipeline.Run(ctx, attribution.Request{
		UserID:    userID,
		Operation: "profile_explanation",
		QueryText: queryText,
		System:    advisorSystem,
		BuildPrompt: func(data map[string]any) string {
			return profilePrompt(data, aspectsText)
		},
		MaxTokens: 1000,
	})
	if err != nil {
		return ProfileExplanation{}, err
	}

	insights, _ := out.Parsed["ai_insights"].(map[string]any)
	if insights == nil {
		insights = map[string]any{}
	}
	var recommendations []string
	if items, ok := out.Parsed["recommendations"].([]any); ok {
		recommendations = reasoning.StringList(items)
	}

	return ProfileExplanation{
		Summary:            reasoning.Text(out.Parsed["profile_summary"], ""),
		Insights:           insights,
		AttributesAnalyzed: out.Attributes,
		Recommendations:    recommendations,
		AuditID:            out.AuditID,
	}, nil
}

// parseFactors coerces the loosely-typed factors array. Items that are not
// objects are skipped; object items always yield a factor, defaulting any
// field the model got wrong.
func parseFactors(ctx context.Context, logger *slog.Logger, raw any) []Factor {
	items, ok := raw.([]any)
	if !ok {
		return []Factor{}
	}
	factors := make([]Factor, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			logger.WarnContext(ctx, "skipping non-object factor", "factor", item)
			continue
		}
		impact := reasoning.Text(m["impact"], "neutral")
		switch impact {
		case "positive", "negative", "neutral":
		default:
			impact = "neutral"
		}
		factors = append(factors, Factor{
			Name:   reasoning.Text(m["name"], "Unknown"),
			Value:  m["value"],
			Weight: clamp01(reasoning.Number(m["weight"], 0)),
			Impact: impact,
			Reason: reasoning.Text(m["reason"], ""),
		})
	}
	return factors
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func loanPrompt(data map[string]any, amount float64, loanType string) string {
	payload, _ := json.MarshalIndent(data, "", "  ")
	return fmt.Sprintf(`Assess loan eligibility. Keep the response CONCISE.

User Data:
%s

Loan Request: %.0f (%s)

Requirements:
1. Decision: approved/denied/requires_review
2. Confidence: 0.0-1.0
3. Brief explanation (2-3 sentences max)
4. List attributes used: user.income, accounts.balance, etc.
5. Top 3-5 factors only

Return JSON:
{
  "decision": "approved|denied|requires_review",
  "confidence": 0.0-1.0,
  "explanation": "Brief 2-3 sentence explanation",
  "attributes_used": ["user.income", "user.creditScore"],
  "factors": [
    {"name": "Factor 1", "value": 750, "weight": 0.3, "impact": "positive", "reason": "Brief reason"}
  ]
}`, payload, amount, loanType)
}

func profilePrompt(data map[string]any, aspectsText string) string {
	payload, _ := json.MarshalIndent(data, "", "  ")
	return fmt.Sprintf(`Analyze this user's banking profile and provide CONCISE insights (keep each section under 100 words):

%s%s

Provide BRIEF:
1. Profile summary (2-3 sentences)
2. Key insights (1-2 sentences each)
3. Top 3-5 recommendations only
4. List attributes used: user.income, accounts.balance, etc.

Return JSON:
{
  "profile_summary": "Brief 2-3 sentence summary",
  "ai_insights": {
    "financial_health": "1-2 sentences",
    "spending_patterns": "1-2 sentences",
    "risk_assessment": "1-2 sentences"
  },
  "recommendations": ["Brief rec 1", "Brief rec 2", "Brief rec 3"],
  "attributes_used": ["user.income"]
}`, payload, aspectsText)
}
