// Package task runs fire-and-forget background work.
//
// A Spawner owns a cancellable context shared by every task it starts.
// Errors and recovered panics are never dropped silently: each finished
// task hands its error to a sink, which logs at warn level by default.
//
//	sp := task.NewSpawner(ctx)
//	sp.SetLogger(logger)
//	sp.Go("resolve kitchen", dev.ResolveAddress, nil)
//	...
//	sp.Close() // cancels and waits
package task
