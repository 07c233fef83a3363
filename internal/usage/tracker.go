// Package usage records token consumption per provider, model, mode, session
// and user, and persists the aggregate as JSON.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ukiyo/internal/logging"
)

// DefaultSaveDelay is the debounce window between a Track call and the write to disk.
const DefaultSaveDelay = 5 * time.Second

type trackerKey struct{}
type scopeKey struct{}

// Scope labels a call for aggregation.
type Scope struct {
	Mode      string
	SessionID string
	UserID    string
}

// Tracker manages token usage recording and persistence.
// A Tracker with an empty file path keeps stats in memory only.
type Tracker struct {
	mu        sync.Mutex
	data      UsageData
	filePath  string
	saveDelay time.Duration
	saveTimer *time.Timer
	closed    bool
}

// NewTracker creates a tracker persisting to filePath. An existing file is loaded;
// a corrupt file is logged and replaced on the next save.
func NewTracker(filePath string) (*Tracker, error) {
	t := &Tracker{
		filePath:  filePath,
		saveDelay: DefaultSaveDelay,
		data: UsageData{
			Version:   "1.0",
			Aggregate: newAggregate(),
		},
	}

	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create usage dir: %w", err)
		}
		if err := t.Load(); err != nil {
			logging.Get(logging.CategoryUsage).Warn("usage file %s unreadable, starting fresh: %v", filePath, err)
		}
	}

	return t, nil
}

// NewMemoryTracker creates a tracker that never touches disk.
func NewMemoryTracker() *Tracker {
	t, _ := NewTracker("")
	return t
}

// Load reads the usage data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	loaded := UsageData{Aggregate: newAggregate()}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	fillMaps(&loaded.Aggregate)
	t.data = loaded
	return nil
}

func fillMaps(a *AggregatedStats) {
	for _, m := range []*map[string]TokenCounts{
		&a.ByProvider, &a.ByModel, &a.ByMode, &a.ByOperation, &a.BySession, &a.ByUser,
	} {
		if *m == nil {
			*m = make(map[string]TokenCounts)
		}
	}
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	if t.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Track records a usage event. Scope labels come from the context.
func (t *Tracker) Track(ctx context.Context, model, provider string, input, output int, operation string) {
	scope := ScopeFromContext(ctx)
	t.Record(UsageEvent{
		Timestamp:    time.Now(),
		Model:        model,
		Provider:     provider,
		InputTokens:  input,
		OutputTokens: output,
		Mode:         scope.Mode,
		SessionID:    scope.SessionID,
		UserID:       scope.UserID,
		Operation:    operation,
	})
}

// Record adds an event to the aggregate and schedules a debounced save.
func (t *Tracker) Record(ev UsageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	agg := &t.data.Aggregate
	agg.Total.Add(ev.InputTokens, ev.OutputTokens)
	agg.Calls++

	addToMap(agg.ByProvider, ev.Provider, ev.InputTokens, ev.OutputTokens)
	addToMap(agg.ByModel, ev.Model, ev.InputTokens, ev.OutputTokens)
	addToMap(agg.ByMode, orUnknown(ev.Mode), ev.InputTokens, ev.OutputTokens)
	addToMap(agg.ByOperation, orUnknown(ev.Operation), ev.InputTokens, ev.OutputTokens)
	addToMap(agg.BySession, orUnknown(ev.SessionID), ev.InputTokens, ev.OutputTokens)
	addToMap(agg.ByUser, orUnknown(ev.UserID), ev.InputTokens, ev.OutputTokens)

	logging.Get(logging.CategoryUsage).Debug("tracked %s/%s in=%d out=%d mode=%s",
		ev.Provider, ev.Model, ev.InputTokens, ev.OutputTokens, ev.Mode)

	// Debounced auto-save
	if t.filePath != "" && t.saveTimer == nil && !t.closed {
		t.saveTimer = time.AfterFunc(t.saveDelay, t.flush)
	}
}

func (t *Tracker) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveTimer = nil
	if err := t.saveLocked(); err != nil {
		logging.Get(logging.CategoryUsage).Error("usage save failed: %v", err)
	}
}

// Close cancels any pending save and writes the final state.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.saveTimer != nil {
		t.saveTimer.Stop()
		t.saveTimer = nil
	}
	return t.saveLocked()
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByMode = copyTokenCountsMap(stats.ByMode)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	stats.BySession = copyTokenCountsMap(stats.BySession)
	stats.ByUser = copyTokenCountsMap(stats.ByUser)
	return stats
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Context Helpers

// NewContext returns a new context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext retrieves the tracker from the context.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}

// WithScope labels every call made under ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the labels set by WithScope, if any.
func ScopeFromContext(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}
