// Package batchmut provides a tick-driven batch mutation pipeline for large
// collections of instanced data.
//
// A Scheduler polls registered Transformers once per tick, snapshots the
// instances of each dirty transformer's target containers, and hands every
// chunk to the transformer together with a single-use MutationHandle. The
// transformer computes new values (synchronously or on its own goroutines)
// and either releases the handle with a MutationResult or abandons it.
// Results are queued and applied back to the containers on the owning
// goroutine at the next tick boundary, under a per-container batch lock that
// guarantees at most one open chunk per container at a time.
//
// # Features
//
//   - Priority-ordered dispatch with stable ordering between equal priorities
//   - Field-masked snapshots so transformers read only what they need
//   - Exactly-once handle termination, safe from any goroutine
//   - Leak guard that abandons dropped handles so container locks cannot leak
//   - Request cycle tracking with an exactly-once completion callback
//   - Back-pressure via a global in-flight chunk cap and lock contention retry
//   - Pluggable logging, metrics (Prometheus included) and lifecycle hooks
//
// # Quick Start
//
//	cfg := batchmut.DefaultConfig()
//	sched, err := batchmut.NewScheduler(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sched.Close()
//
//	target := container.NewMemory(8)
//	sway := transform.NewSway([]batchmut.Container{target},
//	    transform.WithAmplitude(0.25),
//	)
//	sched.RegisterTransformer(sway)
//
//	for range ticker.C {
//	    sway.UpdateFrameParams(frame)
//	    sched.Tick(frameDelta)
//	}
//
// # Goroutine Model
//
// One goroutine owns the scheduler: it calls Tick, registers transformers and
// reads stats. Transformers may process chunks on background goroutines, but
// the only scheduler surface they may touch from there is the handle's
// Release and Abandon. All container writes happen on the owning goroutine.
package batchmut
