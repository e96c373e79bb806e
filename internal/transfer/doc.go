// Package transfer moves objects from a source bucket into a warehouse raw
// table in two stages: a Fetcher that downloads the bucket into a run-scoped
// local directory and returns a Manifest, and a Loader that stages the
// Manifest's files in the warehouse and bulk-ingests them once.
//
// States (per run):
//   - idle -> fetching -> fetched -> loading -> loaded | failed
//   - fetching -> failed when the Fetcher errors; the Loader is then skipped.
//
// Delivery is at-least-once. Source objects are never deleted or tagged, so
// every run re-ingests whatever is still in the bucket. Runs are not
// idempotent and callers must guarantee at most one in-flight run per
// pipeline (see package scheduler). A Loader can additionally hold a Lease for
// the span of its warehouse session, which is taken only when there is
// something to load.
//
// Every stage error is run-fatal and returned immediately; nothing retries
// inside a run. Local files and warehouse staging rows of a run are removed
// on every exit path.
package transfer
