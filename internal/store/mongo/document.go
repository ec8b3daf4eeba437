package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/triage/internal/session"
)

type document struct {
	ID                  string            `bson:"session_id"`
	TargetName          string            `bson:"target_name,omitempty"`
	DeviceInfo          map[string]string `bson:"device_info"`
	CollectedCategories []string          `bson:"collected_categories"`
	CategoryData        bson.M            `bson:"category_data,omitempty"`
	Status              string            `bson:"status"`
	CreatedAt           time.Time         `bson:"created_at"`
	UpdatedAt           time.Time         `bson:"updated_at"`
}

func (d document) toSession() session.Session {
	s := session.Session{
		ID:                  d.ID,
		TargetName:          d.TargetName,
		DeviceInfo:          d.DeviceInfo,
		CollectedCategories: d.CollectedCategories,
		CategoryData:        make(map[string]any, len(d.CategoryData)),
		Status:              session.Status(d.Status),
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
	if s.DeviceInfo == nil {
		s.DeviceInfo = map[string]string{}
	}
	if s.CollectedCategories == nil {
		s.CollectedCategories = []string{}
	}
	for k, v := range d.CategoryData {
		s.CategoryData[k] = normalize(v)
	}
	return s
}

// normalize converts driver container types into plain maps and slices, so
// payloads read back look the same as payloads decoded from JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.M:
		return normalizeMap(t)
	case bson.A:
		return normalizeSlice(t)
	case bson.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	}

	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case []any:
		return normalizeSlice(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = normalize(e)
	}
	return out
}

func normalizeSlice(a []any) []any {
	out := make([]any, len(a))
	for i, e := range a {
		out[i] = normalize(e)
	}
	return out
}
