package types

// Hooks defines optional callbacks for scheduler lifecycle events.
//
// All hooks are optional; nil members are skipped. Hooks fire synchronously on
// the goroutine that resolves the event (OnCycleComplete and OnResultDiscarded
// on the scheduler's owning goroutine, OnHandleAutoAbandoned wherever the
// leaked handle is collected), so implementations should complete quickly and
// must not call back into the scheduler.
type Hooks struct {
	// OnCycleComplete is called when all chunks of one transformer dispatch
	// have resolved.
	// total: number of chunks in the cycle
	// abandoned: how many of them were abandoned rather than released
	OnCycleComplete func(transformer string, total, abandoned int)

	// OnResultDiscarded is called when a queued result or abandon key is
	// dropped instead of applied.
	OnResultDiscarded func(reason string)

	// OnHandleAutoAbandoned is called when a handle dropped while still open is
	// auto-abandoned by its leak guard.
	OnHandleAutoAbandoned func(cell Cell)
}
