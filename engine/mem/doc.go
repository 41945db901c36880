// Package mem implements an in-memory process engine, used for testing and single node deployments.
/*
mem provides a full implementation of the [engine.Engine] interface.

Create an Engine

Since testing must be deterministic, a mem engine is created with a disabled job executor, not running a goroutine.
If a job executor is needed, it can be enabled via [mem.Options].Common.JobExecutorEnabled.

	e, err := mem.New(func(o *mem.Options) {
		o.Common.EngineId = "my-mem-engine"
	})
	if err != nil {
		log.Fatalf("failed to create mem engine: %v", err)
	}

	defer e.Shutdown()

Snapshot File

If [mem.Options].SnapshotFile is set, the engine's state is loaded from a bbolt file on creation and written back
after each successful command.
*/
package mem
