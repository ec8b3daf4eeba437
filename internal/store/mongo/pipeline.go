package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/triage/internal/category"
	"github.com/dmitrymomot/triage/internal/session"
)

// updatePipeline translates a mutation into a two-stage update: the first stage
// merges fields, the second recomputes status from the merged category set.
// Payloads are wrapped in $literal so their content is never evaluated.
func updatePipeline(m session.Mutation) mongo.Pipeline {
	orEmptyDoc := func(field string) bson.D {
		return bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.D{}}}}
	}
	collected := bson.D{{Key: "$ifNull", Value: bson.A{"$collected_categories", bson.A{}}}}

	set := bson.D{
		{Key: "created_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$created_at", m.At}}}},
		{Key: "updated_at", Value: m.At},
		{Key: "status", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$status", string(session.StatusPartial)}}}},
	}

	if len(m.DeviceInfo) > 0 {
		set = append(set, bson.E{Key: "device_info", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
			orEmptyDoc("device_info"),
			literal(m.DeviceInfo),
		}}}})
	} else {
		set = append(set, bson.E{Key: "device_info", Value: orEmptyDoc("device_info")})
	}

	if m.HasCategory() {
		name := literal(m.Category)
		set = append(set,
			bson.E{Key: "category_data", Value: bson.D{{Key: "$setField", Value: bson.D{
				{Key: "field", Value: m.Category},
				{Key: "input", Value: orEmptyDoc("category_data")},
				{Key: "value", Value: mergedValue(m)},
			}}}},
			bson.E{Key: "collected_categories", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$in", Value: bson.A{name, collected}}},
				collected,
				bson.D{{Key: "$concatArrays", Value: bson.A{collected, bson.A{name}}}},
			}}}},
		)
	} else {
		set = append(set,
			bson.E{Key: "category_data", Value: orEmptyDoc("category_data")},
			bson.E{Key: "collected_categories", Value: collected},
		)
	}

	known := bson.A{}
	for _, k := range category.Known() {
		known = append(known, k)
	}

	status := bson.D{{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$gte", Value: bson.A{
			bson.D{{Key: "$size", Value: bson.D{{Key: "$setIntersection", Value: bson.A{"$collected_categories", known}}}}},
			category.Threshold,
		}}},
		string(session.StatusComplete),
		"$status",
	}}}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: set}},
		{{Key: "$set", Value: status}},
	}
}

// mergedValue is the new value of category_data.<category>.
func mergedValue(m session.Mutation) any {
	payload, isMap := m.Payload.(map[string]any)
	if m.Strategy != category.DeepMergeMap || !isMap {
		return literal(m.Payload)
	}

	existing := bson.D{{Key: "$getField", Value: bson.D{
		{Key: "field", Value: m.Category},
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$category_data", bson.D{}}}}},
	}}}

	return bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: existing}}, "object"}}},
		bson.D{{Key: "$mergeObjects", Value: bson.A{existing, literal(payload)}}},
		literal(payload),
	}}}
}

func literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}
