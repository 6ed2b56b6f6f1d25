// Package observer records which collections and fields the storage layer
// actually read while serving one request. The reconciliation engine compares
// this ground truth against what the generative model claims it used.
//
// Observers are carried on the request context, never in package state, so
// concurrent requests cannot bleed reads into each other.
package observer

import (
	"context"
	"sort"
	"sync"

	platstrings "glassbank/pkg/platform/strings"
)

// AllFields marks a read without a field projection. A full-document read
// touches every field, so the attribute expansion covers the whole topic.
const AllFields = "*"

type ctxKey struct{}

// Observer accumulates storage reads for a single logical operation.
// Safe for concurrent use; parallel sub-tasks may share one observer or merge
// their own afterward.
type Observer struct {
	mu    sync.Mutex
	reads map[string]map[string]struct{}
	order []string
}

// New returns an empty observer.
func New() *Observer {
	return &Observer{reads: make(map[string]map[string]struct{})}
}

// WithObserver attaches a fresh observer to the context.
func WithObserver(ctx context.Context) (context.Context, *Observer) {
	obs := New()
	return context.WithValue(ctx, ctxKey{}, obs), obs
}

// FromContext returns the observer on the context, or nil when the operation
// is not being observed.
func FromContext(ctx context.Context) *Observer {
	obs, _ := ctx.Value(ctxKey{}).(*Observer)
	return obs
}

// Record notes that the given fields of a collection were read. An empty
// fields slice means the documents were read without projection and is
// recorded as AllFields. Callers must only record reads that succeeded.
func (o *Observer) Record(collection string, fields ...string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	set, ok := o.reads[collection]
	if !ok {
		set = make(map[string]struct{})
		o.reads[collection] = set
		o.order = append(o.order, collection)
	}
	if len(fields) == 0 {
		set[AllFields] = struct{}{}
		return
	}
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
}

// Reset clears all recorded reads.
func (o *Observer) Reset() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reads = make(map[string]map[string]struct{})
	o.order = nil
}

// Snapshot returns the recorded reads as collection to sorted field list, in
// first-seen collection order.
func (o *Observer) Snapshot() []CollectionRead {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]CollectionRead, 0, len(o.order))
	for _, coll := range o.order {
		fields := make([]string, 0, len(o.reads[coll]))
		for f := range o.reads[coll] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		out = append(out, CollectionRead{Collection: coll, Fields: fields})
	}
	return out
}

// Merge folds another observer's reads into this one. Used when parallel
// sub-tasks observe independently.
func (o *Observer) Merge(other *Observer) {
	if o == nil || other == nil {
		return
	}
	for _, read := range other.Snapshot() {
		o.Record(read.Collection, read.Fields...)
	}
}

// CollectionRead is one collection's recorded field set.
type CollectionRead struct {
	Collection string   `json:"collection"`
	Fields     []string `json:"fields"`
}

// AccessedAttributes expands recorded reads into attribute identifiers using
// the collection-to-topic mapping. An AllFields read expands to every known
// attribute of the topic via expand.
func (o *Observer) AccessedAttributes(topicOf map[string]string, expand func(topic string) []string) []string {
	var out []string
	for _, read := range o.Snapshot() {
		topic, ok := topicOf[read.Collection]
		if !ok {
			continue
		}
		for _, f := range read.Fields {
			if f == AllFields {
				out = append(out, expand(topic)...)
				continue
			}
			out = append(out, topic+"."+f)
		}
	}
	return platstrings.DedupeFold(out)
}
