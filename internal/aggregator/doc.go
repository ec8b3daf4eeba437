// Package aggregator is the session ingestion engine.
//
// Submit takes a Fragment (session id, optional category and payload, optional
// device_info), makes sure the session exists, and applies the fragment to it
// in one store write:
//
//	engine := aggregator.New(store,
//		aggregator.WithConfig(cfg),
//		aggregator.WithLogger(log),
//	)
//
//	res, err := engine.Submit(ctx, aggregator.Fragment{
//		SessionID: "S1",
//		Category:  "wifi",
//		Payload:   []any{map[string]any{"network": "Home"}},
//	})
//
// Each category's merge strategy comes from the category registry. Replace
// overwrites the stored payload and DeepMergeMap merges top-level keys, so
// replaying a fragment is harmless. A session becomes complete once five of
// the eight recognized categories are collected and never goes back to partial.
//
// Store errors wrapping session.ErrStorageUnavailable or session.ErrConflict
// are retried with bounded exponential backoff; when retries run out the
// caller gets session.ErrStorageUnavailable and the fragment is not
// acknowledged.
//
// Deleting a session while a collector is still uploading lets the next
// fragment re-create it. This is accepted behavior.
package aggregator
