package store

// Query is a read-only computation over container state.
type Query[R any] struct {
	fn func(*QueryContext) (R, error)
}

// NewQuery tags fn as a Query.
func NewQuery[R any](fn func(*QueryContext) (R, error)) Query[R] {
	return Query[R]{fn: fn}
}

// Mutation edits container drafts. It may call other mutations and queries.
type Mutation[P any] struct {
	fn func(*MutationContext, P) error
}

// NewMutation tags fn as a Mutation.
func NewMutation[P any](fn func(*MutationContext, P) error) Mutation[P] {
	return Mutation[P]{fn: fn}
}

// Action reads state, commits mutations without recording them and
// dispatches other actions.
type Action[P, R any] struct {
	fn func(*ActionContext, P) (R, error)
}

// NewAction tags fn as an Action.
func NewAction[P, R any](fn func(*ActionContext, P) (R, error)) Action[P, R] {
	return Action[P, R]{fn: fn}
}

// Command is an Action whose recorded mutations form one undoable history
// entry.
type Command[P, R any] struct {
	name string
	fn   func(*CommandContext, P) (R, error)
}

// NewCommand tags fn as a Command. name labels the history records, logs
// and metrics it produces.
func NewCommand[P, R any](name string, fn func(*CommandContext, P) (R, error)) Command[P, R] {
	return Command[P, R]{name: name, fn: fn}
}

// Name returns the command name.
func (c Command[P, R]) Name() string { return c.name }

// StateQuery builds a Query over a single container.
func StateQuery[S, R any](c Container[S], fn func(state S) R) Query[R] {
	return NewQuery(func(ctx *QueryContext) (R, error) {
		s, err := Fetch(ctx, c)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(s), nil
	})
}

// StateMutation builds a Mutation editing a single container's draft.
func StateMutation[S, P any](c Container[S], fn func(state *S, payload P) error) Mutation[P] {
	return NewMutation(func(ctx *MutationContext, payload P) error {
		s, err := Draft(ctx, c)
		if err != nil {
			return err
		}
		return fn(s, payload)
	})
}

// MutationCommand lifts a Mutation into a Command recording it once.
func MutationCommand[P any](name string, m Mutation[P]) Command[P, struct{}] {
	return NewCommand(name, func(ctx *CommandContext, payload P) (struct{}, error) {
		return struct{}{}, Record(ctx, m, payload)
	})
}

// Silently turns a Command into an Action: its recorded mutations are
// committed immediately instead, and commands it dispatches are silent too.
func Silently[P, R any](c Command[P, R]) Action[P, R] {
	return NewAction(func(ctx *ActionContext, payload P) (R, error) {
		if c.fn == nil {
			var zero R
			return zero, ErrUndefined
		}
		cc := &CommandContext{ActionContext: *ctx, name: c.name, silent: true}
		return c.fn(cc, payload)
	})
}
