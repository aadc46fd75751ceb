package practice

import "context"

// Aggregator rolls per-instance outcomes into session counters. It is a pure
// consumer of finalize events: the decision to stop issuing instances belongs
// to the session orchestrator, which reads these counters.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// OnFinalize increments total, increments correct iff the finalizing grade
// passed, and advances the session status. The increment happens inside the
// store so concurrent finalizes on different instances of one session
// cannot overwrite each other.
func (g *Aggregator) OnFinalize(ctx context.Context, sessionID string, ok bool) (Session, error) {
	return g.store.ApplyFinalize(ctx, sessionID, ok)
}
