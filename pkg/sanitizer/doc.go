// Package sanitizer normalizes user-supplied text before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input degrades to an empty string or slice
// instead of an error; emptiness is then reported by the validators.
//
// Normalization includes:
//   - Single-line text (titles, quantities, addresses): trim, collapse whitespace, drop control characters
//   - Multi-line text (descriptions, notes, message content): keep line breaks, trim each line, cap blank runs
//   - Tags (allergens, dietary info): lowercase, underscores for separators, deduplicated
package sanitizer
