// Package category is the registry of recognized collection categories and
// the merge strategy each one uses.
package category

import "strings"

// Strategy says how an incoming payload combines with the stored value.
type Strategy uint8

const (
	// Replace overwrites the stored value.
	Replace Strategy = iota
	// DeepMergeMap merges the payload map into the stored map key by key.
	DeepMergeMap
)

func (s Strategy) String() string {
	switch s {
	case Replace:
		return "replace"
	case DeepMergeMap:
		return "deep_merge_map"
	default:
		return "unknown"
	}
}

// Threshold is the number of distinct recognized categories that completes a session.
const Threshold = 5

// MaxNameLength bounds category names so they stay usable as document field names.
const MaxNameLength = 64

// DeviceInfo is the fragment type that carries a device_info delta instead of category data.
const DeviceInfo = "device_info"

const (
	Chrome      = "chrome"
	Brave       = "brave"
	Edge        = "edge"
	WiFi        = "wifi"
	System      = "system"
	Bookmarks   = "bookmarks"
	Cookies     = "cookies"
	RecentFiles = "recent_files"
)

var registry = map[string]Strategy{
	Chrome:      Replace,
	Brave:       Replace,
	Edge:        Replace,
	WiFi:        Replace,
	System:      Replace,
	Bookmarks:   DeepMergeMap,
	Cookies:     Replace,
	RecentFiles: Replace,
}

var known = []string{Chrome, Brave, Edge, WiFi, System, Bookmarks, Cookies, RecentFiles}

// Lookup returns the strategy for name. Unrecognized names get Replace and recognized=false.
func Lookup(name string) (strategy Strategy, recognized bool) {
	s, ok := registry[name]
	if !ok {
		return Replace, false
	}
	return s, true
}

// Known returns the recognized category names in registry order.
func Known() []string {
	out := make([]string, len(known))
	copy(out, known)
	return out
}

// IsKnown reports whether name is a recognized category.
func IsKnown(name string) bool {
	_, ok := registry[name]
	return ok
}

// CountKnown counts distinct recognized names in collected.
func CountKnown(collected []string) int {
	seen := make(map[string]struct{}, len(collected))
	for _, name := range collected {
		if IsKnown(name) {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}

// Complete reports whether collected holds at least Threshold recognized categories.
func Complete(collected []string) bool {
	return CountKnown(collected) >= Threshold
}

// Valid reports whether name can be stored as a category key.
// Dots and a leading dollar sign would be interpreted as paths or operators by document stores.
func Valid(name string) bool {
	return name != "" &&
		len(name) <= MaxNameLength &&
		!strings.HasPrefix(name, "$") &&
		!strings.Contains(name, ".")
}
