// Package errors defines the bridge's structured error type.
//
// Every error has a Phase (the stage that failed) and a Kind (the failure
// category), plus an optional parameter path, the types involved, a detail
// message and a cause. errors.Is matches on phase and kind:
//
//	err := errors.New(errors.PhaseLower, errors.KindTypeMismatch).
//		Path("set_label", "label").
//		Subject("Go int vs native string").
//		Build()
//
//	if stderrors.Is(err, &errors.Error{Phase: errors.PhaseLower, Kind: errors.KindTypeMismatch}) { ... }
//
// The constructors cover the common cases:
//
//	errors.TypeMismatch(errors.PhaseLower, path, "int", "string")
//	errors.Unresolved(errors.PhaseEvent, "event", "Gtk:size-changed")
package errors
