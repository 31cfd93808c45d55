// Package remotesync mirrors local mutations to a remote store.
//
// Every mutation is applied to local state by the caller first. The
// Coordinator then saves local state to disk, records the mutation in a
// transaction log as pending and writes it to the remote store in the
// background. A single reconciler goroutine marks each entry confirmed or
// failed and resolves failures with the configured Policy:
//
//   - failed insert: keep the local record or roll it back;
//   - failed update/delete: refetch the remote snapshot and restore the
//     record from it, or keep the diverged local state.
//
// Remote calls carry no timeout and are never cancelled. Nothing here blocks
// a local mutation.
package remotesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoRemote is returned by remote operations when no backend is configured.
var ErrNoRemote = errors.New("no remote store configured")

// maxLog bounds the transaction log. Only resolved entries are dropped.
const maxLog = 500

// Status is the connectivity signal.
type Status string

const (
	StatusConnected Status = "connected"
	StatusSyncing   Status = "syncing"
	StatusOffline   Status = "offline"
)

// EntryState is the state of a transaction-log entry.
type EntryState string

const (
	StatePending   EntryState = "pending"
	StateConfirmed EntryState = "confirmed"
	StateFailed    EntryState = "failed"
)

// Resolution tells how a failed entry was handled.
type Resolution string

const (
	ResolutionKept       Resolution = "kept-local"
	ResolutionRolledBack Resolution = "rolled-back"
	ResolutionRefetched  Resolution = "refetched"
	ResolutionDiverged   Resolution = "diverged"
)

// Entry is one transaction-log record.
type Entry struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Collection Collection `json:"collection"`
	RecordID   string     `json:"record_id"`
	State      EntryState `json:"state"`
	Error      string     `json:"error,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt time.Time  `json:"resolved_at,omitzero"`
}

// Local is the local side the Coordinator persists and repairs.
type Local interface {
	// Persist saves the current local state.
	Persist() error
	// RollbackInsert removes an unconfirmed record.
	RollbackInsert(c Collection, id string) error
	// Converge restores a record from a remote snapshot.
	Converge(c Collection, id string, snap Snapshot) error
}

// Hooks are called from the reconciler goroutine. They must not block.
type Hooks struct {
	OnStatus   func(Status)
	OnResolved func(Entry)
}

type result struct {
	entryID string
	m       Mutation
	err     error
}

// Coordinator applies the sync policy. A nil Remote runs it in local-only
// mode: mutations are persisted locally and status stays offline.
type Coordinator struct {
	remote Remote
	local  Local
	policy Policy
	hooks  Hooks
	logger *zap.Logger

	mu         sync.Mutex
	log        []Entry
	inflight   int
	lastFailed bool
	status     Status
	closed     bool
	// unconfirmed holds records whose insert failed and was kept locally.
	unconfirmed map[string]bool

	results chan result
	pending sync.WaitGroup
	stopped chan struct{}
}

// New creates a Coordinator and starts its reconciler.
func New(remote Remote, local Local, policy Policy, hooks Hooks, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if policy.OnInsertFailure == "" {
		policy.OnInsertFailure = DefaultPolicy.OnInsertFailure
	}
	if policy.OnUpdateFailure == "" {
		policy.OnUpdateFailure = DefaultPolicy.OnUpdateFailure
	}
	c := &Coordinator{
		remote:  remote,
		local:   local,
		policy:  policy,
		hooks:   hooks,
		logger:  logger,
		status:  StatusOffline,
		results: make(chan result),
		stopped: make(chan struct{}),

		unconfirmed: make(map[string]bool),
	}
	go c.reconcile()
	return c
}

// Policy returns the failure-handling policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// HasRemote reports whether a remote backend is configured.
func (c *Coordinator) HasRemote() bool { return c.remote != nil }

// Status returns the current connectivity signal.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Log returns a copy of the transaction log, oldest first.
func (c *Coordinator) Log() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.log))
	copy(out, c.log)
	return out
}

// Connect initializes the remote backend.
func (c *Coordinator) Connect(ctx context.Context) error {
	if c.remote == nil {
		return ErrNoRemote
	}
	c.begin()
	err := c.remote.Init(ctx)
	c.end(err)
	if err != nil {
		c.logger.Warn("remote store unavailable, working offline", zap.Error(err))
	}
	return err
}

// Fetch reads the remote snapshot.
func (c *Coordinator) Fetch(ctx context.Context) (Snapshot, error) {
	if c.remote == nil {
		return Snapshot{}, ErrNoRemote
	}
	c.begin()
	snap, err := c.remote.Fetch(ctx)
	c.end(err)
	return snap, err
}

// Submit persists local state and dispatches m to the remote store. It
// returns as soon as the remote write is started.
func (c *Coordinator) Submit(m Mutation) {
	if err := c.local.Persist(); err != nil {
		c.logger.Error("failed to persist local state", zap.Error(err))
	}
	if c.remote == nil {
		return
	}

	entry := Entry{
		ID:         uuid.NewString(),
		Kind:       m.Kind,
		Collection: m.Collection,
		RecordID:   m.RecordID,
		State:      StatePending,
		CreatedAt:  time.Now(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("coordinator closed, mutation kept locally",
			zap.String("collection", string(m.Collection)), zap.String("record_id", m.RecordID))
		return
	}
	c.log = append(c.log, entry)
	c.trimLog()
	c.inflight++
	changed := c.setStatus()
	c.pending.Add(1)
	c.mu.Unlock()
	c.notifyStatus(changed)

	go func() {
		err := m.Write(context.Background(), c.remote)
		c.results <- result{entryID: entry.ID, m: m, err: err}
	}()
}

// Flush waits until every dispatched mutation is resolved.
func (c *Coordinator) Flush() { c.pending.Wait() }

// Close waits for in-flight mutations and stops the reconciler. Later
// mutations are persisted locally only.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.pending.Wait()
	close(c.results)
	<-c.stopped
}

func (c *Coordinator) reconcile() {
	defer close(c.stopped)
	for res := range c.results {
		c.resolve(res)
		c.pending.Done()
	}
}

func (c *Coordinator) resolve(res result) {
	log := c.logger.With(
		zap.String("entry_id", res.entryID),
		zap.String("kind", string(res.m.Kind)),
		zap.String("collection", string(res.m.Collection)),
		zap.String("record_id", res.m.RecordID),
	)

	var resolution Resolution
	if res.err != nil {
		log.Warn("remote write failed", zap.Error(res.err))
		resolution = c.handleFailure(res.m, log)
	} else {
		log.Debug("remote write confirmed")
		if res.m.Kind != Update {
			c.markUnconfirmed(res.m, false)
		}
	}

	c.mu.Lock()
	c.inflight--
	c.lastFailed = res.err != nil
	var entry Entry
	for i := range c.log {
		if c.log[i].ID != res.entryID {
			continue
		}
		if res.err != nil {
			c.log[i].State = StateFailed
			c.log[i].Error = res.err.Error()
			c.log[i].Resolution = resolution
		} else {
			c.log[i].State = StateConfirmed
		}
		c.log[i].ResolvedAt = time.Now()
		entry = c.log[i]
		break
	}
	changed := c.setStatus()
	c.mu.Unlock()

	c.notifyStatus(changed)
	if c.hooks.OnResolved != nil && entry.ID != "" {
		c.hooks.OnResolved(entry)
	}
}

func (c *Coordinator) handleFailure(m Mutation, log *zap.Logger) Resolution {
	if m.Kind == Insert {
		if c.policy.OnInsertFailure != Rollback {
			log.Info("keeping unconfirmed record locally")
			c.markUnconfirmed(m, true)
			return ResolutionKept
		}
		if err := c.local.RollbackInsert(m.Collection, m.RecordID); err != nil {
			log.Error("rollback failed", zap.Error(err))
			c.markUnconfirmed(m, true)
			return ResolutionKept
		}
		c.persist(log)
		log.Warn("unconfirmed record rolled back")
		return ResolutionRolledBack
	}

	if m.Kind == Delete {
		c.markUnconfirmed(m, false)
	}
	if c.policy.OnUpdateFailure != Refetch {
		log.Warn("local state diverges from remote store")
		return ResolutionDiverged
	}
	snap, err := c.remote.Fetch(context.Background())
	if err != nil {
		log.Warn("refetch failed, local state diverges from remote store", zap.Error(err))
		return ResolutionDiverged
	}
	if snap.Has(m.Collection, m.RecordID) {
		c.markUnconfirmed(m, false)
	} else if c.isUnconfirmed(m) {
		log.Warn("record was never confirmed by the remote store, keeping local copy")
		return ResolutionDiverged
	}
	if err := c.local.Converge(m.Collection, m.RecordID, snap); err != nil {
		log.Error("cannot restore record from remote snapshot", zap.Error(err))
		return ResolutionDiverged
	}
	c.persist(log)
	log.Info("record restored from remote snapshot")
	return ResolutionRefetched
}

func unconfirmedKey(m Mutation) string {
	return string(m.Collection) + "/" + m.RecordID
}

func (c *Coordinator) markUnconfirmed(m Mutation, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.unconfirmed[unconfirmedKey(m)] = true
	} else {
		delete(c.unconfirmed, unconfirmedKey(m))
	}
}

func (c *Coordinator) isUnconfirmed(m Mutation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unconfirmed[unconfirmedKey(m)]
}

func (c *Coordinator) persist(log *zap.Logger) {
	if err := c.local.Persist(); err != nil {
		log.Error("failed to persist local state", zap.Error(err))
	}
}

func (c *Coordinator) begin() {
	c.mu.Lock()
	c.inflight++
	changed := c.setStatus()
	c.mu.Unlock()
	c.notifyStatus(changed)
}

func (c *Coordinator) end(err error) {
	c.mu.Lock()
	c.inflight--
	c.lastFailed = err != nil
	changed := c.setStatus()
	c.mu.Unlock()
	c.notifyStatus(changed)
}

// setStatus recomputes the status; c.mu must be held. It returns the new
// status when it changed, "" otherwise.
func (c *Coordinator) setStatus() Status {
	next := StatusConnected
	switch {
	case c.inflight > 0:
		next = StatusSyncing
	case c.lastFailed:
		next = StatusOffline
	}
	if next == c.status {
		return ""
	}
	c.status = next
	return next
}

func (c *Coordinator) notifyStatus(s Status) {
	if s == "" {
		return
	}
	c.logger.Debug("sync status changed", zap.String("status", string(s)))
	if c.hooks.OnStatus != nil {
		c.hooks.OnStatus(s)
	}
}

// trimLog drops the oldest resolved entries beyond maxLog; c.mu must be held.
func (c *Coordinator) trimLog() {
	for len(c.log) > maxLog && c.log[0].State != StatePending {
		c.log = c.log[1:]
	}
}
