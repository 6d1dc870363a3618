// Package engine runs one differential-abundance analysis end to end:
// alignment, offsets, design, per-feature fitting, aggregation and
// multiple-testing correction. It never imports app, writers, or cli; keep
// it domain-only.
//
// External outputs must not depend on the internal shape here; use pkg/api
// for stable wire types (JSON/JSONL v1).
package engine
