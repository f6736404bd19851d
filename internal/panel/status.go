// Package panel holds the view-state the workspace surfaces to renderers:
// a streaming order-book panel over the subscription coordinator and
// REST-backed list panels over the fetch coordinator. Panels never expose
// a thrown error as a crash; they show fresh data, stale-but-present
// data, or an explicit empty state.
package panel

// Status is the tuple shown next to every panel's data.
type Status struct {
	IsLoading bool
	IsStale   bool
	Err       error
}
