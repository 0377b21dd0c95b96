package store

import (
	"errors"

	"gihan9a/patchstore/pkg/patch"
)

var (
	// ErrUnknownContainer is returned when a container id or handle is not
	// registered in the registry being used.
	ErrUnknownContainer = errors.New("unknown container")
	// ErrDuplicateContainer is returned when registering an id twice.
	ErrDuplicateContainer = errors.New("duplicate container")
	// ErrCapabilityViolation is returned when a context is used in a way its
	// capability does not allow and the type system cannot rule out, such as
	// using a context after the function it was passed to has returned.
	ErrCapabilityViolation = errors.New("capability violation")
	// ErrUndefined is returned when a zero Query, Mutation, Action or Command
	// is invoked.
	ErrUndefined = errors.New("undefined operation")
	// ErrPathNotFound is returned when replaying a patch set fails to resolve
	// a path, which means history and container state disagree.
	ErrPathNotFound = patch.ErrPathNotFound
)
