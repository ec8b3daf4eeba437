// Package session defines the session document, its summary view and the
// mutation that one ingested fragment applies to it.
package session

import (
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/triage/internal/category"
)

// Status is the completion state of a session. It only moves from Partial to Complete.
type Status string

const (
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
)

// Session is the aggregated record of every fragment received for one session_id.
type Session struct {
	ID                  string            `json:"session_id" bson:"session_id" yaml:"session_id"`
	TargetName          string            `json:"target_name,omitempty" bson:"target_name,omitempty" yaml:"target_name,omitempty"`
	DeviceInfo          map[string]string `json:"device_info" bson:"device_info" yaml:"device_info"`
	CollectedCategories []string          `json:"collected_categories" bson:"collected_categories" yaml:"collected_categories"`
	CategoryData        map[string]any    `json:"category_data" bson:"category_data" yaml:"category_data"`
	Status              Status            `json:"status" bson:"status" yaml:"status"`
	CreatedAt           time.Time         `json:"created_at" bson:"created_at" yaml:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" bson:"updated_at" yaml:"updated_at"`
}

// New returns an empty partial session created at the given time.
func New(id string, deviceInfo map[string]string, at time.Time) Session {
	di := make(map[string]string, len(deviceInfo))
	maps.Copy(di, deviceInfo)
	return Session{
		ID:                  id,
		DeviceInfo:          di,
		CollectedCategories: []string{},
		CategoryData:        map[string]any{},
		Status:              StatusPartial,
		CreatedAt:           at,
		UpdatedAt:           at,
	}
}

// CategoryCount is the number of collected categories, recognized or not.
func (s Session) CategoryCount() int {
	return len(s.CollectedCategories)
}

// Summary drops the category payloads.
func (s Session) Summary() Summary {
	return Summary{
		ID:                  s.ID,
		TargetName:          s.TargetName,
		DeviceInfo:          maps.Clone(s.DeviceInfo),
		CollectedCategories: slices.Clone(s.CollectedCategories),
		CategoryCount:       len(s.CollectedCategories),
		Status:              s.Status,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// Clone returns a deep copy; payload maps and slices are copied recursively.
func (s Session) Clone() Session {
	out := s
	out.DeviceInfo = maps.Clone(s.DeviceInfo)
	out.CollectedCategories = slices.Clone(s.CollectedCategories)
	if s.CategoryData != nil {
		out.CategoryData = make(map[string]any, len(s.CategoryData))
		for k, v := range s.CategoryData {
			out.CategoryData[k] = CloneValue(v)
		}
	}
	return out
}

// Summary is the list view of a session.
type Summary struct {
	ID                  string            `json:"session_id" yaml:"session_id"`
	TargetName          string            `json:"target_name,omitempty" yaml:"target_name,omitempty"`
	DeviceInfo          map[string]string `json:"device_info" yaml:"device_info"`
	CollectedCategories []string          `json:"collected_categories" yaml:"collected_categories"`
	CategoryCount       int               `json:"category_count" yaml:"category_count"`
	Status              Status            `json:"status" yaml:"status"`
	CreatedAt           time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" yaml:"updated_at"`
}

// CloneValue deep-copies decoded payload values (maps, slices, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// Mutation is everything one fragment changes, expressed as data so that
// backends can either apply it in memory or translate it to server-side operators.
type Mutation struct {
	// DeviceInfo keys overwrite existing keys; other keys are kept.
	DeviceInfo map[string]string
	// Category is empty when the fragment carries no category payload.
	Category string
	Strategy category.Strategy
	Payload  any
	At       time.Time
}

// HasCategory reports whether the mutation writes category data.
func (m Mutation) HasCategory() bool {
	return m.Category != "" && !EmptyPayload(m.Payload)
}

// EmptyPayload reports whether a fragment payload carries nothing to store.
// Scalar zero values (null, "", false, 0) are empty; empty lists and maps are
// not, since "scanned, found nothing" is still a collected category.
func EmptyPayload(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case uint64:
		return t == 0
	default:
		return false
	}
}

// Apply merges the mutation into s. It is the reference semantics every
// backend must reproduce.
func (m Mutation) Apply(s *Session) {
	if s.DeviceInfo == nil {
		s.DeviceInfo = make(map[string]string, len(m.DeviceInfo))
	}
	maps.Copy(s.DeviceInfo, m.DeviceInfo)

	if m.HasCategory() {
		if s.CategoryData == nil {
			s.CategoryData = make(map[string]any, 1)
		}
		s.CategoryData[m.Category] = Merge(m.Strategy, s.CategoryData[m.Category], m.Payload)
		if !slices.Contains(s.CollectedCategories, m.Category) {
			s.CollectedCategories = append(s.CollectedCategories, m.Category)
		}
	}
	if s.CollectedCategories == nil {
		s.CollectedCategories = []string{}
	}

	if s.Status != StatusComplete {
		s.Status = StatusPartial
		if category.Complete(s.CollectedCategories) {
			s.Status = StatusComplete
		}
	}

	if !m.At.IsZero() {
		s.UpdatedAt = m.At
	}
}

// Merge combines a stored value with an incoming payload under strategy.
// DeepMergeMap overwrites colliding top-level keys only; a non-map on either
// side degrades to Replace.
func Merge(strategy category.Strategy, existing, payload any) any {
	switch strategy {
	case category.DeepMergeMap:
		incoming, ok := payload.(map[string]any)
		if !ok {
			return CloneValue(payload)
		}
		current, ok := existing.(map[string]any)
		if !ok {
			return CloneValue(incoming)
		}
		out := make(map[string]any, len(current)+len(incoming))
		for k, v := range current {
			out[k] = CloneValue(v)
		}
		for k, v := range incoming {
			out[k] = CloneValue(v)
		}
		return out
	default:
		return CloneValue(payload)
	}
}
