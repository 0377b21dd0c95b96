package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gihan9a/patchstore/pkg/patch"
)

// EventKind tells observers why a container changed.
type EventKind int

const (
	// EventCommit is a command committing its record.
	EventCommit EventKind = iota
	// EventSilent is an unrecorded commit from an action.
	EventSilent
	// EventUndo is a record being undone.
	EventUndo
	// EventRedo is a record being redone.
	EventRedo
)

func (k EventKind) String() string {
	switch k {
	case EventCommit:
		return "commit"
	case EventSilent:
		return "silent"
	case EventUndo:
		return "undo"
	case EventRedo:
		return "redo"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event describes patches that have been applied to one live container.
type Event struct {
	Kind      EventKind
	Container string
	Patches   patch.Set
	Record    string // CommandRecord id, empty for silent commits

	// Value is a private copy of the container value right after Patches
	// were applied.
	Value any
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHistoryLimit bounds the number of undoable records. Zero means
// unbounded.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.limit = n }
}

type observer struct {
	id uint64
	fn func(Event)
}

// Session binds a registry to its history. Every entry point runs under one
// coarse lock, so commands touching several containers are linearized.
// Functions running inside a context must not call back into the Session;
// they compose through Dispatch and DispatchCommand instead.
type Session struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	reg       *Registry
	history   *History
	logger    *slog.Logger
	limit     int
	observers []observer
	nextObs   uint64
	pending   []Event
}

// NewSession creates a session over reg. A nil reg gets a new registry.
func NewSession(reg *Registry, opts ...Option) *Session {
	if reg == nil {
		reg = NewRegistry()
	}
	s := &Session{reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.history = NewHistory(reg, s.limit)
	s.history.replayed = s.replayed
	return s
}

// Registry returns the registry the session resolves containers through.
func (s *Session) Registry() *Registry { return s.reg }

// Execute runs a command. Its recorded patches are applied to the live
// containers and pushed as one history record only if it returns nil; on
// error no recorded change reaches any container.
func Execute[P, R any](s *Session, c Command[P, R], payload P) (R, error) {
	var ret R
	if c.fn == nil {
		return ret, ErrUndefined
	}
	start := time.Now()
	err := s.exclusive(func() error {
		tx := newTransaction(s.reg)
		ctx := &CommandContext{
			ActionContext: ActionContext{
				QueryContext: QueryContext{reg: s.reg, src: tx, lease: &lease{}},
				sess:         s,
				tx:           tx,
			},
			name: c.name,
		}
		r, err := func() (R, error) {
			defer func() {
				ctx.lease.close()
				tx.closed = true
			}()
			return c.fn(ctx, payload)
		}()
		if err != nil {
			s.logger.Debug("command failed", "command", c.name, "error", err)
			return err
		}
		if err := s.commit(c.name, tx.changes()); err != nil {
			return err
		}
		ret = r
		return nil
	})

	result := "ok"
	if err != nil {
		result = "error"
		ret = *new(R)
	}
	commandsTotal.WithLabelValues(c.name, result).Inc()
	commandDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	return ret, err
}

// Run dispatches an action at top level.
func Run[P, R any](s *Session, a Action[P, R], payload P) (R, error) {
	var ret R
	if a.fn == nil {
		return ret, ErrUndefined
	}
	err := s.exclusive(func() error {
		ctx := &ActionContext{
			QueryContext: QueryContext{reg: s.reg, src: liveView{}, lease: &lease{}},
			sess:         s,
		}
		defer ctx.lease.close()
		var err error
		ret, err = a.fn(ctx, payload)
		return err
	})
	return ret, err
}

// Read runs a query against the live containers.
func Read[R any](s *Session, q Query[R]) (R, error) {
	var ret R
	if q.fn == nil {
		return ret, ErrUndefined
	}
	err := s.exclusive(func() error {
		ctx := &QueryContext{reg: s.reg, src: liveView{}, lease: &lease{}}
		defer ctx.lease.close()
		var err error
		ret, err = q.fn(ctx)
		return err
	})
	return ret, err
}

// Load returns a snapshot of a container's state.
func Load[S any](s *Session, c Container[S]) (S, error) {
	return Read(s, NewQuery(func(ctx *QueryContext) (S, error) {
		return Fetch(ctx, c)
	}))
}

// Apply commits a mutation at top level without recording it.
func Apply[P any](s *Session, m Mutation[P], payload P) error {
	if m.fn == nil {
		return ErrUndefined
	}
	return s.exclusive(func() error {
		return s.silentCommit(nil, func(mc *MutationContext) error {
			return m.fn(mc, payload)
		})
	})
}

// Undo reverts the most recent record. It reports false when there is
// nothing to undo. A replay error means history and state disagree; nothing
// is changed and the error is returned.
func (s *Session) Undo() (bool, error) {
	return s.replay(Backward)
}

// Redo reapplies the most recently undone record.
func (s *Session) Redo() (bool, error) {
	return s.replay(Forward)
}

func (s *Session) replay(dir Direction) (bool, error) {
	var ok bool
	err := s.exclusive(func() error {
		var err error
		if dir == Backward {
			ok, err = s.history.Undo()
		} else {
			ok, err = s.history.Redo()
		}
		return err
	})
	switch {
	case err != nil:
		replaysTotal.WithLabelValues(dir.String(), "error").Inc()
		s.logger.Warn("history replay failed", "direction", dir.String(), "error", err)
	case !ok:
		replaysTotal.WithLabelValues(dir.String(), "empty").Inc()
	default:
		replaysTotal.WithLabelValues(dir.String(), "ok").Inc()
	}
	return ok, err
}

// Undoable reports whether Undo would do anything.
func (s *Session) Undoable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undoable()
}

// Redoable reports whether Redo would do anything.
func (s *Session) Redoable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redoable()
}

// Done returns the undoable records, oldest first.
func (s *Session) Done() []*CommandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Done()
}

// Undone returns the redoable records, oldest first.
func (s *Session) Undone() []*CommandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undone()
}

// ClearHistory drops both history stacks. Container values are kept.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	observeDepth(s.history)
}

// Snapshot returns a deep copy of a container's value tree.
func (s *Session) Snapshot(id string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.reg.Resolve(id)
	if err != nil {
		return nil, err
	}
	return e.Snapshot(), nil
}

// Observe registers fn to be called for every change applied to a live
// container. Calls happen after the session lock is released, in the order
// the changes were applied, also across goroutines. fn must not call back
// into the session, including the returned cancel; Event.Value carries the
// state it needs. The returned function unregisters fn.
func (s *Session) Observe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observeLocked(fn)
}

// Subscribe is Observe restricted to one container. It also returns a copy
// of the value the first delivered event applies to, so a follower starting
// from it neither misses nor repeats a change.
func (s *Session) Subscribe(id string, fn func(Event)) (value any, cancel func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.reg.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	cancel = s.observeLocked(func(ev Event) {
		if ev.Container == id {
			fn(ev)
		}
	})
	return e.Snapshot(), cancel, nil
}

func (s *Session) observeLocked(fn func(Event)) func() {
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// exclusive runs fn under the session lock, then notifies observers of the
// events fn queued. notifyMu is taken before mu is released so deliveries
// keep apply order.
func (s *Session) exclusive(fn func() error) error {
	s.mu.Lock()
	locked := true
	defer func() {
		if locked {
			s.pending = nil
			s.mu.Unlock()
		}
	}()

	s.pending = nil
	err := fn()
	events := s.pending
	if len(events) == 0 || len(s.observers) == 0 {
		return err
	}
	observers := append([]observer(nil), s.observers...)
	s.pending = nil
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()
	locked = false

	for _, ev := range events {
		for _, o := range observers {
			o.fn(ev)
		}
	}
	return err
}

// commit applies a finished transaction and pushes its record. Commands that
// recorded nothing leave history untouched.
func (s *Session) commit(name string, changes []Change) error {
	if len(changes) == 0 {
		s.logger.Debug("command recorded no changes", "command", name)
		return nil
	}
	if err := applyChanges(s.reg, changes, Forward); err != nil {
		return fmt.Errorf("commit %q: %w", name, err)
	}
	rec := &CommandRecord{ID: uuid.NewString(), Name: name, Changes: changes}
	s.history.Push(rec)
	observeDepth(s.history)
	countPatches("command", changes, Forward)
	s.queue(EventCommit, rec.ID, changes, Forward)
	s.logger.Debug("command committed", "command", name, "record", rec.ID, "containers", rec.Containers())
	return nil
}

// silentCommit applies a mutation at once without recording it. Inside a
// command it reads through the in-flight record and refuses containers that
// already have recorded edits pending.
func (s *Session) silentCommit(tx *transaction, run func(*MutationContext) error) error {
	var (
		base  view = liveView{}
		guard func(*Entry) error
	)
	if tx != nil {
		base, guard = tx, tx.guardSilent
	}
	d := newDraftSet(base, guard)
	if err := runMutation(s.reg, d, run); err != nil {
		return err
	}
	results, err := d.finish()
	if err != nil {
		return err
	}
	changes := make([]Change, len(results))
	for i, r := range results {
		changes[i] = Change{Container: r.entry.id, Do: r.do, Undo: r.undo}
	}
	if err := applyChanges(s.reg, changes, Forward); err != nil {
		return err
	}
	countPatches("silent", changes, Forward)
	s.queue(EventSilent, "", changes, Forward)
	return nil
}

func (s *Session) replayed(rec *CommandRecord, dir Direction) {
	kind := EventRedo
	if dir == Backward {
		kind = EventUndo
	}
	observeDepth(s.history)
	countPatches(dir.String(), rec.Changes, dir)
	s.queue(kind, rec.ID, rec.Changes, dir)
	s.logger.Debug("history replayed", "direction", dir.String(), "command", rec.Name, "record", rec.ID)
}

func (s *Session) queue(kind EventKind, record string, changes []Change, dir Direction) {
	for _, c := range changes {
		set := c.Do
		if dir == Backward {
			set = c.Undo
		}
		ev := Event{Kind: kind, Container: c.Container, Patches: set, Record: record}
		if e, err := s.reg.Resolve(c.Container); err == nil {
			ev.Value = e.Snapshot()
		}
		s.pending = append(s.pending, ev)
	}
}
