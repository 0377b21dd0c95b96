package store

import (
	"errors"
	"fmt"
)

// lease bounds the lifetime of a context to the call it was handed to.
type lease struct{ closed bool }

func (l *lease) check() error {
	if l == nil || l.closed {
		return fmt.Errorf("%w: context used outside of its call", ErrCapabilityViolation)
	}
	return nil
}

func (l *lease) close() { l.closed = true }

// view resolves the value tree a context observes for a container.
type view interface {
	tree(e *Entry) (any, error)
}

// liveView reads committed container values.
type liveView struct{}

func (liveView) tree(e *Entry) (any, error) { return e.value, nil }

// Reader is implemented by every capability context. It grants Fetch and Get.
type Reader interface {
	reader() *QueryContext
}

// Committer is implemented by contexts that may commit mutations:
// MutationContext, ActionContext and CommandContext.
type Committer interface {
	Reader
	commit(run func(*MutationContext) error) error
}

// Dispatcher is implemented by contexts that may dispatch actions:
// ActionContext and CommandContext.
type Dispatcher interface {
	Committer
	actionContext() *ActionContext
}

// QueryContext is handed to queries. It can only read.
type QueryContext struct {
	reg   *Registry
	src   view
	lease *lease
}

func (q *QueryContext) reader() *QueryContext { return q }

// MutationContext is handed to mutations. Drafts taken through it are
// shared with every nested mutation committed through it.
type MutationContext struct {
	QueryContext
	drafts *draftSet
}

// commit runs a nested mutation over the shared drafts. If it fails, the
// drafts are put back the way they were before it ran.
func (m *MutationContext) commit(run func(*MutationContext) error) error {
	if err := m.lease.check(); err != nil {
		return err
	}
	cp, err := m.drafts.checkpoint()
	if err != nil {
		return err
	}
	if err := runMutation(m.reg, m.drafts, run); err != nil {
		if rbErr := m.drafts.rollback(cp); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

// ActionContext is handed to actions. Reads are snapshots; commits are
// applied immediately and are not recorded in history.
type ActionContext struct {
	QueryContext
	sess *Session
	tx   *transaction
}

func (a *ActionContext) commit(run func(*MutationContext) error) error {
	if err := a.lease.check(); err != nil {
		return err
	}
	return a.sess.silentCommit(a.tx, run)
}

func (a *ActionContext) actionContext() *ActionContext { return a }

func (a *ActionContext) child() ActionContext {
	return ActionContext{
		QueryContext: QueryContext{reg: a.reg, src: a.src, lease: &lease{}},
		sess:         a.sess,
		tx:           a.tx,
	}
}

// CommandContext is handed to commands. Reads observe the in-flight record,
// so a command sees the effect of its own earlier Record calls.
type CommandContext struct {
	ActionContext
	name   string
	silent bool
}

// Fetch returns a snapshot copy of a container's state as seen by ctx.
func Fetch[S any](ctx Reader, c Container[S]) (S, error) {
	var zero S
	q := ctx.reader()
	if err := q.lease.check(); err != nil {
		return zero, err
	}
	e, err := c.resolve(q.reg)
	if err != nil {
		return zero, err
	}
	tree, err := q.src.tree(e)
	if err != nil {
		return zero, err
	}
	return decodeState[S](e.id, tree)
}

// Get runs another query against the same state ctx observes.
func Get[R any](ctx Reader, q Query[R]) (R, error) {
	var zero R
	parent := ctx.reader()
	if err := parent.lease.check(); err != nil {
		return zero, err
	}
	if q.fn == nil {
		return zero, ErrUndefined
	}
	child := &QueryContext{reg: parent.reg, src: parent.src, lease: &lease{}}
	defer child.lease.close()
	return q.fn(child)
}

// Draft returns the writable draft of a container's state. Repeated calls
// within one mutation, including nested ones, return the same pointer.
func Draft[S any](ctx *MutationContext, c Container[S]) (*S, error) {
	if err := ctx.lease.check(); err != nil {
		return nil, err
	}
	e, err := c.resolve(ctx.reg)
	if err != nil {
		return nil, err
	}
	return draftOf[S](ctx.drafts, e)
}

// Commit runs a mutation. From a MutationContext it joins the caller's
// drafts, and a failing nested mutation leaves them as they were; from an ActionContext or CommandContext it is applied at once and
// not recorded.
func Commit[P any](ctx Committer, m Mutation[P], payload P) error {
	if m.fn == nil {
		return ErrUndefined
	}
	return ctx.commit(func(mc *MutationContext) error {
		return m.fn(mc, payload)
	})
}

// Dispatch runs another action.
func Dispatch[P, R any](ctx Dispatcher, a Action[P, R], payload P) (R, error) {
	var zero R
	parent := ctx.actionContext()
	if err := parent.lease.check(); err != nil {
		return zero, err
	}
	if a.fn == nil {
		return zero, ErrUndefined
	}
	child := parent.child()
	defer child.lease.close()
	return a.fn(&child, payload)
}

// Record runs a mutation and accumulates its patches into the in-flight
// record of the command. Nothing reaches the live containers until the
// outermost command returns successfully.
func Record[P any](ctx *CommandContext, m Mutation[P], payload P) error {
	if err := ctx.lease.check(); err != nil {
		return err
	}
	if m.fn == nil {
		return ErrUndefined
	}
	run := func(mc *MutationContext) error { return m.fn(mc, payload) }
	if ctx.silent {
		return ctx.sess.silentCommit(ctx.tx, run)
	}
	return ctx.tx.record(run)
}

// DispatchCommand runs another command under the caller's in-flight record,
// so the composition yields a single history entry.
func DispatchCommand[P, R any](ctx *CommandContext, c Command[P, R], payload P) (R, error) {
	var zero R
	if err := ctx.lease.check(); err != nil {
		return zero, err
	}
	if c.fn == nil {
		return zero, ErrUndefined
	}
	child := &CommandContext{ActionContext: ctx.child(), name: ctx.name, silent: ctx.silent}
	defer child.lease.close()
	return c.fn(child, payload)
}
