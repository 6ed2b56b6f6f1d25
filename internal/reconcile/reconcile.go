// Package reconcile cross-validates the attribute list a generative model
// claims it used against the attributes the platform observed being read.
// Model self-reports are untrusted input: fabricated attributes are dropped,
// omitted ones are restored from the observed set.
package reconcile

import (
	"glassbank/internal/attr"
)

// Status classifies how well the model's self-report matched observed access.
type Status string

const (
	// StatusMatched: every self-reported attribute was observed and every
	// observed attribute was self-reported.
	StatusMatched Status = "matched"
	// StatusPartial: some self-reported attributes were observed, but the two
	// sets disagree somewhere.
	StatusPartial Status = "partial"
	// StatusMismatch: nothing the model claimed matches what was observed.
	StatusMismatch Status = "mismatch"
)

// Result carries the full reconciliation detail. The audit trail stores all
// of it; client responses only see the validated list after consent
// filtering.
type Result struct {
	// Matched: self-reported and observed.
	Matched []string `json:"matched"`
	// Unmatched: self-reported but never observed. Dropped from the
	// validated set as fabrications.
	Unmatched []string `json:"unmatched"`
	// Missing: observed but not self-reported by the model.
	Missing []string `json:"missing"`

	Status Status `json:"validationStatus"`
}

// Reconcile compares the model's self-reported attributes with the observed
// set. Both inputs are normalized and deduplicated case-insensitively before
// comparison; every input attribute lands in exactly one bucket.
func Reconcile(selfReported, accessed []string) Result {
	reported := attr.Dedupe(selfReported)
	observed := attr.Dedupe(accessed)

	observedKeys := attr.KeySet(observed)
	reportedKeys := attr.KeySet(reported)

	res := Result{
		Matched:   []string{},
		Unmatched: []string{},
		Missing:   []string{},
	}

	for _, id := range reported {
		if _, ok := observedKeys[attr.Key(id)]; ok {
			res.Matched = append(res.Matched, id)
		} else {
			res.Unmatched = append(res.Unmatched, id)
		}
	}
	for _, id := range observed {
		if _, ok := reportedKeys[attr.Key(id)]; !ok {
			res.Missing = append(res.Missing, id)
		}
	}

	res.Status = classify(res)
	return res
}

func classify(res Result) Status {
	switch {
	case len(res.Unmatched) == 0 && len(res.Missing) == 0:
		// Includes the both-empty case: nothing claimed, nothing observed.
		return StatusMatched
	case len(res.Matched) > 0:
		return StatusPartial
	default:
		return StatusMismatch
	}
}

// PromoteUnmatched moves self-reported attributes that accept approves from
// Unmatched into Matched and reclassifies. Conversational flows use this to
// tolerate well-formed identifiers the narrow observation window missed;
// anything accept rejects stays a fabrication.
func (r Result) PromoteUnmatched(accept func(id string) bool) Result {
	out := Result{
		Matched: append([]string{}, r.Matched...),
		Missing: append([]string{}, r.Missing...),
	}
	out.Unmatched = []string{}
	for _, id := range r.Unmatched {
		if accept(id) {
			out.Matched = append(out.Matched, id)
		} else {
			out.Unmatched = append(out.Unmatched, id)
		}
	}
	out.Status = classify(out)
	return out
}

// Validated returns the trustworthy attribute list: everything observed,
// whether or not the model admitted to it, with fabrications excluded.
// Sorted and deduplicated for stable payloads.
func (r Result) Validated() []string {
	return attr.SortedDedupe(append(append([]string{}, r.Matched...), r.Missing...))
}
