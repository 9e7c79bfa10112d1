package main

import (
	"errors"
	"fmt"

	"contractbot/internal/config"
	"contractbot/internal/dialogue"
	"contractbot/internal/events"
	"contractbot/internal/session"
	"contractbot/internal/store"
	"contractbot/internal/task"

	"go.uber.org/zap"
)

// runtimeOptions selects which collaborators a command needs.
type runtimeOptions struct {
	// persist opens the turn log and session snapshots when the config enables them.
	persist bool
	// publish connects the task event publisher.
	publish bool
}

// appRuntime is the wired engine plus its persistence collaborators.
type appRuntime struct {
	cfg       *config.Config
	sessions  *session.MemoryStore
	manager   *dialogue.Manager
	turnLog   *store.TurnLog
	snapshots *store.Snapshots
	publisher events.Publisher
}

// openRuntime builds the dialogue manager described by c. Snapshotted
// sessions are restored into the memory store.
func openRuntime(c *config.Config, opts runtimeOptions) (*appRuntime, error) {
	tasks, err := task.LoadOrDefault(c.Tasks.File)
	if err != nil {
		return nil, err
	}

	rt := &appRuntime{
		cfg:       c,
		sessions:  session.NewMemoryStore(c.Session.Shards, c.GetSessionTTL()),
		publisher: events.NopPublisher{},
	}
	mopts := []dialogue.Option{dialogue.WithConfig(c)}

	if opts.persist && c.Store.TurnLogEnabled {
		rt.turnLog, err = store.OpenTurnLog(c.Store.Driver, c.ResolveTurnLogPath())
		if err != nil {
			rt.Close()
			return nil, err
		}
		mopts = append(mopts, dialogue.WithTurnRecorder(rt.turnLog))
	}

	if opts.persist && c.Store.SnapshotEnabled {
		rt.snapshots, err = store.OpenSnapshots(c.ResolveSnapshotDir(), c.GetSessionTTL())
		if err != nil {
			rt.Close()
			return nil, err
		}
		restored, err := rt.snapshots.LoadAll()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("restore sessions: %w", err)
		}
		for _, s := range restored {
			rt.sessions.Put(s)
		}
		if logger != nil && len(restored) > 0 {
			logger.Info("Restored sessions", zap.Int("count", len(restored)))
		}
	}

	if opts.publish {
		rt.publisher, err = events.New(c.Events.NATSURL, c.Events.Subject)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	mopts = append(mopts, dialogue.WithPublisher(rt.publisher))

	rt.manager = dialogue.NewManager(rt.sessions, tasks, mopts...)
	return rt, nil
}

// Close saves a final snapshot and releases every collaborator.
func (rt *appRuntime) Close() error {
	var errs []error
	if rt.snapshots != nil {
		if err := rt.snapshots.SaveFrom(rt.sessions); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, rt.snapshots.Close())
	}
	if rt.turnLog != nil {
		errs = append(errs, rt.turnLog.Close())
	}
	if rt.publisher != nil {
		errs = append(errs, rt.publisher.Close())
	}
	return errors.Join(errs...)
}
