package errors

import (
	"fmt"
	"strings"
)

// Phase names the bridge stage that failed.
type Phase string

const (
	PhaseRegister  Phase = "register"  // class registration, op-table build
	PhaseLower     Phase = "lower"     // Go to native
	PhaseLift      Phase = "lift"      // native to Go
	PhaseDispatch  Phase = "dispatch"  // trampoline and outbound calls
	PhaseEvent     Phase = "event"     // event descriptor resolution, (de)registration
	PhaseLifecycle Phase = "lifecycle" // handle construction and release
	PhaseLoad      Phase = "load"      // binding metadata loading
	PhaseValidate  Phase = "validate"  // binding metadata validation
)

// Kind is the failure category.
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindAllocation     Kind = "allocation"
	KindFieldMissing   Kind = "field_missing"
	KindOverflow       Kind = "overflow"
	KindNilPointer     Kind = "nil_pointer"
	KindInvalidEnum    Kind = "invalid_enum"
	KindNotFound       Kind = "not_found"
	KindUnresolved     Kind = "unresolved"
	KindSignature      Kind = "signature"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
	KindUnhandled      Kind = "unhandled"
	KindNotInitialized Kind = "not_initialized"
)

// Error carries where a bridge operation failed and on what.
// Subject names the Go and/or native type involved, if any.
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Subject string
	Detail  string
	Path    []string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Phase, e.Kind)
	if len(e.Path) > 0 {
		msg += " at " + strings.Join(e.Path, ".")
	}
	var parts []string
	if e.Subject != "" {
		parts = append(parts, e.Subject)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, ": ")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same phase and kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Subject records the type the failure is about.
func (b *Builder) Subject(s string) *Builder {
	b.err.Subject = s
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message; args are applied with fmt.Sprintf when present.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

func build(phase Phase, kind Kind, path []string, subject, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Path: path, Subject: subject, Detail: detail}
}

func goNative(goType, nativeType string) string {
	switch {
	case goType != "" && nativeType != "":
		return "Go " + goType + " vs native " + nativeType
	case goType != "":
		return "Go " + goType
	case nativeType != "":
		return "native " + nativeType
	}
	return ""
}

func TypeMismatch(phase Phase, path []string, goType, nativeType string) *Error {
	return build(phase, KindTypeMismatch, path, goNative(goType, nativeType), "")
}

func AllocationFailed(phase Phase, size, align uint32) *Error {
	return build(phase, KindAllocation, nil, "", fmt.Sprintf("%d bytes, align %d", size, align))
}

func FieldMissing(phase Phase, path []string, field string) *Error {
	return build(phase, KindFieldMissing, path, "", fmt.Sprintf("no field %q", field))
}

func Unsupported(phase Phase, what string) *Error {
	return build(phase, KindUnsupported, nil, "", what)
}

func NilPointer(phase Phase, path []string, goType string) *Error {
	return build(phase, KindNilPointer, path, goNative(goType, ""), "nil pointer")
}

// Overflow reports a value that does not fit the native type.
func Overflow(phase Phase, path []string, value any, nativeType string) *Error {
	return build(phase, KindOverflow, path, goNative("", nativeType), fmt.Sprintf("%v out of range", value))
}

func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return build(phase, KindInvalidEnum, path, goNative("", enumType), fmt.Sprintf("no case %v", value))
}

func InvalidData(phase Phase, path []string, detail string) *Error {
	return build(phase, KindInvalidData, path, "", detail)
}

func InvalidInput(phase Phase, detail string) *Error {
	return build(phase, KindInvalidInput, nil, "", detail)
}

// Wrap attaches phase and kind to an error from outside the bridge.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	e := build(phase, kind, nil, "", detail)
	e.Cause = cause
	return e
}

func NotInitialized(phase Phase, component string) *Error {
	return build(phase, KindNotInitialized, nil, "", component+" not initialized")
}

func NotFound(phase Phase, what, name string) *Error {
	return build(phase, KindNotFound, nil, "", fmt.Sprintf("%s %q", what, name))
}

// Unresolved reports a native symbol or descriptor lookup that failed.
func Unresolved(phase Phase, what, name string) *Error {
	return build(phase, KindUnresolved, nil, "", fmt.Sprintf("native %s %q", what, name))
}

// Signature reports a Go method whose shape does not fit its operation.
func Signature(goType, method, detail string) *Error {
	return build(PhaseRegister, KindSignature, []string{method}, goNative(goType, ""), detail)
}

func Registration(goType, nativeName string, cause error) *Error {
	e := build(PhaseRegister, KindRegistration, nil, goNative(goType, nativeName), "")
	e.Cause = cause
	return e
}

func Load(detail string, cause error) *Error {
	e := build(PhaseLoad, KindInvalidData, nil, "", detail)
	e.Cause = cause
	return e
}
