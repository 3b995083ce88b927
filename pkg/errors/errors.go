// Package errors defines the typed error taxonomy shared by every kraken
// component. Each kind is a distinct struct satisfying the error interface
// and exposing Unwrap so callers can use errors.As/errors.Is.
package errors

import (
	"fmt"
	"strings"
)

// InvalidAddressError reports a malformed address element or an illegal
// operation performed on the root or empty address (Parent/Name on those,
// or setting container status on the empty address).
type InvalidAddressError struct {
	Address string
	Message string
	Err     error
}

func NewInvalidAddressError(address, message string, err error) error {
	return &InvalidAddressError{Address: address, Message: message, Err: err}
}

func (e *InvalidAddressError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("invalid address: %s", e.Message)
	}
	return fmt.Sprintf("invalid address %q: %s", e.Address, e.Message)
}

func (e *InvalidAddressError) Unwrap() error { return e.Err }

// AddressResolutionError reports that a concrete address element had no
// match during resolution. Query/Entity/FailedAt/Remainder mirror the
// AddressResolutionStep the failure occurred at, so a caller can
// reconstruct "the nonexistent address".
type AddressResolutionError struct {
	EntityAddress   string
	Query           string
	FailedAtAddress string
	Remainder       string
	NonexistentAddr string
}

func NewAddressResolutionError(entityAddress, query, failedAtAddress, remainder, nonexistentAddr string) error {
	return &AddressResolutionError{
		EntityAddress:   entityAddress,
		Query:           query,
		FailedAtAddress: failedAtAddress,
		Remainder:       remainder,
		NonexistentAddr: nonexistentAddr,
	}
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf(
		"could not resolve address %q in context %q: the failure occurred at address %q trying to resolve the remainder %q; the address %q does not exist",
		e.Query, e.EntityAddress, e.FailedAtAddress, e.Remainder, e.NonexistentAddr,
	)
}

// IsRecursiveWildcardFailure reports whether the remainder's first element
// is a recursive wildcard, i.e. the failure is the immediate successor of a
// "**" rather than the wildcard itself.
func (e *AddressResolutionError) IsRecursiveWildcardFailure() bool {
	return strings.HasPrefix(e.Remainder, "**")
}

// ProjectNotFoundError reports that an address resolved syntactically but
// no project exists at that location.
type ProjectNotFoundError struct {
	Address string
}

func NewProjectNotFoundError(address string) error {
	return &ProjectNotFoundError{Address: address}
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project not found: %s", e.Address)
}

// ProjectLoaderError reports that the external script runner failed while
// loading a project. The partial project registration is reverted by the
// caller before this error propagates.
type ProjectLoaderError struct {
	ProjectAddress string
	Message        string
	Err            error
}

func NewProjectLoaderError(projectAddress, message string, err error) error {
	return &ProjectLoaderError{ProjectAddress: projectAddress, Message: message, Err: err}
}

func (e *ProjectLoaderError) Error() string {
	return fmt.Sprintf("[%s] %s", e.ProjectAddress, e.Message)
}

func (e *ProjectLoaderError) Unwrap() error { return e.Err }

// TaskResolutionError reports that a task selector yielded no tasks (the
// suppressed "**:" empty-subproject case never produces this error).
type TaskResolutionError struct {
	Selector string
}

func NewTaskResolutionError(selector string) error {
	return &TaskResolutionError{Selector: selector}
}

func (e *TaskResolutionError) Error() string {
	return fmt.Sprintf("no tasks matched selector %q", e.Selector)
}

// PropertyEmptyError reports reading an input property that has no value.
type PropertyEmptyError struct {
	Owner    string
	Property string
	Message  string
}

func NewPropertyEmptyError(owner, property, message string) error {
	return &PropertyEmptyError{Owner: owner, Property: property, Message: message}
}

func (e *PropertyEmptyError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("property %s.%s is empty: %s", e.Owner, e.Property, e.Message)
	}
	return fmt.Sprintf("property %s.%s is empty", e.Owner, e.Property)
}

// PropertyDeferredError reports reading an output property that has never
// been set; distinct from PropertyEmptyError because the writer may still
// run later in the graph.
type PropertyDeferredError struct {
	Owner    string
	Property string
}

func NewPropertyDeferredError(owner, property string) error {
	return &PropertyDeferredError{Owner: owner, Property: property}
}

func (e *PropertyDeferredError) Error() string {
	return fmt.Sprintf("property %s.%s is deferred (output not yet produced)", e.Owner, e.Property)
}

// PropertyFinalizedError reports a mutation attempted on a finalized
// property.
type PropertyFinalizedError struct {
	Owner    string
	Property string
}

func NewPropertyFinalizedError(owner, property string) error {
	return &PropertyFinalizedError{Owner: owner, Property: property}
}

func (e *PropertyFinalizedError) Error() string {
	return fmt.Sprintf("property %s.%s is finalized", e.Owner, e.Property)
}

// DuplicateMemberError reports adding a task or child project whose name
// already exists among the parent's members.
type DuplicateMemberError struct {
	Parent string
	Name   string
}

func NewDuplicateMemberError(parent, name string) error {
	return &DuplicateMemberError{Parent: parent, Name: name}
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("%q already has a member named %q", e.Parent, e.Name)
}

// BuildError reports that one or more tasks failed during execution. It
// carries every failed task's address so a caller can report them all.
type BuildError struct {
	FailedTaskAddresses []string
}

func NewBuildError(failedTaskAddresses []string) error {
	return &BuildError{FailedTaskAddresses: failedTaskAddresses}
}

func (e *BuildError) Error() string {
	if len(e.FailedTaskAddresses) == 1 {
		return fmt.Sprintf("task %q failed", e.FailedTaskAddresses[0])
	}
	quoted := make([]string, len(e.FailedTaskAddresses))
	for i, a := range e.FailedTaskAddresses {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf("tasks %s failed", strings.Join(quoted, ", "))
}

// InterruptedError reports that the user requested cancellation.
type InterruptedError struct {
	Message string
}

func NewInterruptedError(message string) error {
	return &InterruptedError{Message: message}
}

func (e *InterruptedError) Error() string {
	if e.Message == "" {
		return "build interrupted"
	}
	return fmt.Sprintf("build interrupted: %s", e.Message)
}

// GraphError reports a structural problem building or transforming a
// TaskGraph (a dependency cycle found by Trim or ExecutionOrder). An
// invalid SetStatus transition panics instead of returning a GraphError.
type GraphError struct {
	Message string
}

func NewGraphError(message string) error {
	return &GraphError{Message: message}
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error: %s", e.Message)
}

// ParseError represents a YAML parsing failure with optional line metadata,
// used by the BuildConfig loader.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError captures BuildConfig validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }
