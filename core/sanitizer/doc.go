// Package sanitizer cleans free-form text before it is stored.
//
//	name := sanitizer.Label("  Target\x1b 1\n") // "Target 1"
package sanitizer
