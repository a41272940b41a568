// Package supervisor owns the lifecycle of running widget instances.
//
// Every instance gets its own actor goroutine. Lifecycle hooks (move, resize,
// event dispatch, close) are queued on that actor, so they run in order for
// the instance and never interleave with each other. Script execution in the
// instance sandbox also happens on the actor. A panic, uncaught script error
// or script timeout tears down only that instance and is reported as a
// crashed event; siblings and the broker keep running.
//
// The supervisor never draws anything. It drives a Surface per instance and
// leaves rendering to the presentation layer.
//
// Example Usage:
//
//	sup := supervisor.New(registry, broker, stateManager, supervisor.DefaultConfig(), logger)
//	defer sup.Shutdown(ctx)
//
//	id, err := sup.Launch(ctx, "clock")
//	if err != nil {
//	    return err // InvalidConfig or CapacityExceeded
//	}
//	_ = sup.Move(ctx, id, types.Position{X: 40, Y: 40})
//	_ = sup.Close(ctx, id)
package supervisor
