// Package sqlite decodes the on-disk SQLite database file format into
// structured summaries: the 100-byte database header and per-page summaries
// of b-tree, freelist, and auxiliary pages.
//
// All functions here are pure: they operate on byte slices handed to them and
// perform no I/O and hold no shared state. Decoding never panics regardless
// of input; malformed values are clamped and reported as page warnings, and
// only structurally unusable pages produce a CorruptPageError.
package sqlite
