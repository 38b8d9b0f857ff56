// Package event provides the typed, multi-valued records routed between
// reactors. An Event is an ordered multimap from term reference to tagged
// value, with a declared event type that must be an object term.
//
// Events are created per inbound record and passed by pointer; downstream
// reactors may retain them until done. Events are not internally
// synchronized: a reactor that mutates a shared event must do so before
// delivering it downstream.
package event

import (
	"fmt"
	"time"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/vocab"
)

// Value is a tagged value stored in an event. The tag always matches the
// referenced term's type.
type Value struct {
	Tag vocab.TermType
	raw any
}

// String returns the stored string; the boolean is false on tag mismatch.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok && v.Tag == vocab.TypeString
}

// UInt returns the stored unsigned integer.
func (v Value) UInt() (uint64, bool) {
	n, ok := v.raw.(uint64)
	return n, ok && v.Tag == vocab.TypeUInt
}

// Int returns the stored signed integer.
func (v Value) Int() (int64, bool) {
	n, ok := v.raw.(int64)
	return n, ok && v.Tag == vocab.TypeInt
}

// Float returns the stored 32-bit float.
func (v Value) Float() (float32, bool) {
	f, ok := v.raw.(float32)
	return f, ok && v.Tag == vocab.TypeFloat
}

// Double returns the stored 64-bit float.
func (v Value) Double() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, ok && v.Tag == vocab.TypeDouble
}

// DateTime returns the stored timestamp.
func (v Value) DateTime() (time.Time, bool) {
	ts, ok := v.raw.(time.Time)
	return ts, ok && v.Tag == vocab.TypeDateTime
}

// Equal reports tag and value equality. Timestamps compare with time.Equal
// so equivalent instants in different locations match.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	if vt, ok := v.raw.(time.Time); ok {
		ot, ok := o.raw.(time.Time)
		return ok && vt.Equal(ot)
	}
	return v.raw == o.raw
}

// Format renders the value as text; datetime values use the given layout.
func (v Value) Format(layout string) string {
	switch v.Tag {
	case vocab.TypeString:
		return v.raw.(string)
	case vocab.TypeUInt:
		return fmt.Sprintf("%d", v.raw.(uint64))
	case vocab.TypeInt:
		return fmt.Sprintf("%d", v.raw.(int64))
	case vocab.TypeFloat:
		return fmt.Sprintf("%g", v.raw.(float32))
	case vocab.TypeDouble:
		return fmt.Sprintf("%g", v.raw.(float64))
	case vocab.TypeDateTime:
		return v.raw.(time.Time).Format(layout)
	}
	return ""
}

type entry struct {
	term  vocab.TermRef
	value Value
}

// Event is an ordered collection of (term reference, tagged value) pairs
// with a declared event type.
type Event struct {
	typ     vocab.TermRef
	entries []entry
}

// New creates an empty event of the given type.
func New(eventType vocab.TermRef) *Event {
	return &Event{typ: eventType}
}

// Type returns the event type reference.
func (e *Event) Type() vocab.TermRef { return e.typ }

// Empty reports whether the event has no entries.
func (e *Event) Empty() bool { return len(e.entries) == 0 }

// Len returns the number of entries.
func (e *Event) Len() int { return len(e.entries) }

// Clear removes all entries, keeping the event type.
func (e *Event) Clear() { e.entries = e.entries[:0] }

// IsDefined reports whether at least one value is set for the term.
func (e *Event) IsDefined(ref vocab.TermRef) bool {
	for _, en := range e.entries {
		if en.term == ref {
			return true
		}
	}
	return false
}

// Each iterates entries in insertion order; returning false stops early.
func (e *Event) Each(fn func(ref vocab.TermRef, v Value) bool) {
	for _, en := range e.entries {
		if !fn(en.term, en.value) {
			return
		}
	}
}

// Clone returns an independent copy; mutating the clone does not mutate
// the original.
func (e *Event) Clone() *Event {
	c := &Event{typ: e.typ, entries: make([]entry, len(e.entries))}
	copy(c.entries, e.entries)
	return c
}

// Equal is pairwise term-reference and value equality in insertion order.
func (e *Event) Equal(o *Event) bool {
	if e.typ != o.typ || len(e.entries) != len(o.entries) {
		return false
	}
	for i := range e.entries {
		if e.entries[i].term != o.entries[i].term {
			return false
		}
		if !e.entries[i].value.Equal(o.entries[i].value) {
			return false
		}
	}
	return true
}

func (e *Event) set(ref vocab.TermRef, v Value) {
	e.entries = append(e.entries, entry{term: ref, value: v})
}

// SetString appends a string value for the term.
func (e *Event) SetString(ref vocab.TermRef, s string) {
	e.set(ref, Value{Tag: vocab.TypeString, raw: s})
}

// SetUInt appends an unsigned integer value for the term.
func (e *Event) SetUInt(ref vocab.TermRef, n uint64) {
	e.set(ref, Value{Tag: vocab.TypeUInt, raw: n})
}

// SetInt appends a signed integer value for the term.
func (e *Event) SetInt(ref vocab.TermRef, n int64) {
	e.set(ref, Value{Tag: vocab.TypeInt, raw: n})
}

// SetFloat appends a 32-bit float value for the term.
func (e *Event) SetFloat(ref vocab.TermRef, f float32) {
	e.set(ref, Value{Tag: vocab.TypeFloat, raw: f})
}

// SetDouble appends a 64-bit float value for the term.
func (e *Event) SetDouble(ref vocab.TermRef, f float64) {
	e.set(ref, Value{Tag: vocab.TypeDouble, raw: f})
}

// SetDateTime appends a timestamp value for the term.
func (e *Event) SetDateTime(ref vocab.TermRef, ts time.Time) {
	e.set(ref, Value{Tag: vocab.TypeDateTime, raw: ts})
}

// Get returns the first value stored for the term.
func (e *Event) Get(ref vocab.TermRef) (Value, bool) {
	for _, en := range e.entries {
		if en.term == ref {
			return en.value, true
		}
	}
	return Value{}, false
}

func (e *Event) typed(ref vocab.TermRef, want vocab.TermType, method string) (Value, error) {
	v, ok := e.Get(ref)
	if !ok {
		return Value{}, errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("term ref %d: %w", ref, errors.ErrTermNotFound),
			"Event", method, "value lookup")
	}
	if v.Tag != want {
		return Value{}, errors.WrapKind(errors.KindTypeMismatch,
			fmt.Errorf("stored %s, want %s: %w", v.Tag, want, errors.ErrTypeMismatch),
			"Event", method, "tag check")
	}
	return v, nil
}

// GetString returns the first string value for the term. It fails with a
// type-mismatch error when the stored tag differs.
func (e *Event) GetString(ref vocab.TermRef) (string, error) {
	v, err := e.typed(ref, vocab.TypeString, "GetString")
	if err != nil {
		return "", err
	}
	s, _ := v.String()
	return s, nil
}

// GetUInt returns the first unsigned integer value for the term.
func (e *Event) GetUInt(ref vocab.TermRef) (uint64, error) {
	v, err := e.typed(ref, vocab.TypeUInt, "GetUInt")
	if err != nil {
		return 0, err
	}
	n, _ := v.UInt()
	return n, nil
}

// GetInt returns the first signed integer value for the term.
func (e *Event) GetInt(ref vocab.TermRef) (int64, error) {
	v, err := e.typed(ref, vocab.TypeInt, "GetInt")
	if err != nil {
		return 0, err
	}
	n, _ := v.Int()
	return n, nil
}

// GetFloat returns the first 32-bit float value for the term.
func (e *Event) GetFloat(ref vocab.TermRef) (float32, error) {
	v, err := e.typed(ref, vocab.TypeFloat, "GetFloat")
	if err != nil {
		return 0, err
	}
	f, _ := v.Float()
	return f, nil
}

// GetDouble returns the first 64-bit float value for the term.
func (e *Event) GetDouble(ref vocab.TermRef) (float64, error) {
	v, err := e.typed(ref, vocab.TypeDouble, "GetDouble")
	if err != nil {
		return 0, err
	}
	f, _ := v.Double()
	return f, nil
}

// GetDateTime returns the first timestamp value for the term.
func (e *Event) GetDateTime(ref vocab.TermRef) (time.Time, error) {
	v, err := e.typed(ref, vocab.TypeDateTime, "GetDateTime")
	if err != nil {
		return time.Time{}, err
	}
	ts, _ := v.DateTime()
	return ts, nil
}
