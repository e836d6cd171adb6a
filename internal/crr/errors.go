package crr

import "fmt"

// MisuseError reports a call that is structurally invalid: multiple
// statements in one compile call, an unrecognized statement kind, or an
// unsupported index predicate.
type MisuseError struct {
	Op     string
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("crr: misuse in %s: %s", e.Op, e.Reason)
}

// IntrospectionError wraps a failure reading column, primary-key, or index
// metadata for a table from the host engine.
type IntrospectionError struct {
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("crr: introspecting %q: %v", e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// EngineError wraps a failure the host engine returned while executing
// generated SQL (table/view/trigger creation, the changes scan, ...).
type EngineError struct {
	Stmt string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("crr: engine error executing %q: %v", e.Stmt, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ResourceError reports a failure to obtain a resource the engine needs,
// such as the cross-process bootstrap file lock Bootstrap takes.
type ResourceError struct {
	Reason string
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("crr: resource error: %s: %v", e.Reason, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// InvariantError reports a state the engine never expects to observe, such
// as a site-id table that exists but holds no row.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("crr: invariant violated: %s", e.Reason)
}
