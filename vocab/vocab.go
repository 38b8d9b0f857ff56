// Package vocab provides the term catalog used by codecs, events and
// reactors. Terms are URN-named and typed; they are grouped into namespaces
// that may be locked against modification. Term references are stable for
// the lifetime of the vocabulary unless the owning namespace is unlocked
// and mutated.
package vocab

import (
	"fmt"
	"strings"

	"github.com/vincentyang1210/pion/errors"
)

// TermRef is a stable index into the vocabulary. The zero value is the
// undefined term.
type TermRef uint32

// UndefinedTermRef is returned for lookups that fail and identifies events
// that have no declared event type.
const UndefinedTermRef TermRef = 0

// TermType tags the kind of value a term describes.
type TermType int

const (
	// TypeNull is the type of the undefined term
	TypeNull TermType = iota
	// TypeString holds UTF-8 text
	TypeString
	// TypeUInt holds an unsigned 64-bit integer
	TypeUInt
	// TypeInt holds a signed 64-bit integer
	TypeInt
	// TypeFloat holds a 32-bit floating point number
	TypeFloat
	// TypeDouble holds a 64-bit floating point number
	TypeDouble
	// TypeDateTime holds a timestamp
	TypeDateTime
	// TypeObject groups other terms; event types must be objects
	TypeObject
)

// String returns the configuration name for the type tag
func (t TermType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeUInt:
		return "uint"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeDateTime:
		return "datetime"
	case TypeObject:
		return "object"
	default:
		return "null"
	}
}

// ParseTermType maps a configuration name to a type tag.
func ParseTermType(s string) (TermType, error) {
	switch strings.ToLower(s) {
	case "string":
		return TypeString, nil
	case "uint", "uint8", "uint16", "uint32", "uint64":
		return TypeUInt, nil
	case "int", "int8", "int16", "int32", "int64":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "double":
		return TypeDouble, nil
	case "datetime", "timestamp", "date", "time":
		return TypeDateTime, nil
	case "object":
		return TypeObject, nil
	}
	return TypeNull, errors.WrapInvalid(
		fmt.Errorf("unknown term type %q", s), "Vocabulary", "ParseTermType", "type lookup")
}

// Term is a typed, URN-named element of the vocabulary.
type Term struct {
	// Ref is assigned by the vocabulary when the term is added
	Ref TermRef
	// ID is the URN, e.g. "urn:vocab:clickstream#bytes"
	ID string
	// Type is the value tag for events carrying this term
	Type TermType
	// Comment is a human-readable description
	Comment string
	// Format is an optional formatting pattern, used by datetime terms
	Format string
}

// Namespace returns the URN prefix before the '#' fragment separator.
// "urn:vocab:clickstream#bytes" belongs to "urn:vocab:clickstream".
func (t Term) Namespace() string { return NamespaceOf(t.ID) }

// NamespaceOf returns the namespace portion of a term URN.
func NamespaceOf(urn string) string {
	if i := strings.IndexByte(urn, '#'); i >= 0 {
		return urn[:i]
	}
	return urn
}

// Vocabulary is an immutable snapshot of the term catalog. Snapshots are
// produced by the Manager; readers may hold one indefinitely without
// synchronization.
type Vocabulary struct {
	terms []Term           // index is TermRef; slot 0 is the undefined term
	byURN map[string]TermRef
}

func newVocabulary() *Vocabulary {
	return &Vocabulary{
		terms: []Term{{Ref: UndefinedTermRef, Type: TypeNull}},
		byURN: make(map[string]TermRef),
	}
}

// clone produces a deep copy suitable for copy-on-write mutation.
func (v *Vocabulary) clone() *Vocabulary {
	c := &Vocabulary{
		terms: make([]Term, len(v.terms)),
		byURN: make(map[string]TermRef, len(v.byURN)),
	}
	copy(c.terms, v.terms)
	for urn, ref := range v.byURN {
		c.byURN[urn] = ref
	}
	return c
}

// FindTerm resolves a URN to its term reference. Returns UndefinedTermRef
// and false when the URN is not defined.
func (v *Vocabulary) FindTerm(urn string) (TermRef, bool) {
	ref, ok := v.byURN[urn]
	return ref, ok
}

// Term returns the term for a reference. The second result is false for
// out-of-range references and for terms that have been removed.
func (v *Vocabulary) Term(ref TermRef) (Term, bool) {
	if ref == UndefinedTermRef || int(ref) >= len(v.terms) {
		return Term{}, false
	}
	t := v.terms[ref]
	if t.Type == TypeNull {
		return Term{}, false
	}
	return t, true
}

// Len returns the number of live terms.
func (v *Vocabulary) Len() int { return len(v.byURN) }

// EachTerm calls fn for every live term in reference order.
func (v *Vocabulary) EachTerm(fn func(Term)) {
	for _, t := range v.terms[1:] {
		if t.Type != TypeNull {
			fn(t)
		}
	}
}

// addTerm appends a term and assigns its reference.
func (v *Vocabulary) addTerm(t Term) (TermRef, error) {
	if t.ID == "" {
		return UndefinedTermRef, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Vocabulary", "addTerm", "term URN validation")
	}
	if _, exists := v.byURN[t.ID]; exists {
		return UndefinedTermRef, errors.WrapInvalid(
			fmt.Errorf("term %q: %w", t.ID, errors.ErrDuplicateID),
			"Vocabulary", "addTerm", "duplicate term check")
	}
	t.Ref = TermRef(len(v.terms))
	v.terms = append(v.terms, t)
	v.byURN[t.ID] = t.Ref
	return t.Ref, nil
}

// updateTerm replaces the stored term, keeping its reference.
func (v *Vocabulary) updateTerm(t Term) error {
	ref, ok := v.byURN[t.ID]
	if !ok {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("term %q: %w", t.ID, errors.ErrTermNotFound),
			"Vocabulary", "updateTerm", "term lookup")
	}
	t.Ref = ref
	v.terms[ref] = t
	return nil
}

// removeTerm tombstones the slot so later references stay stable.
func (v *Vocabulary) removeTerm(urn string) error {
	ref, ok := v.byURN[urn]
	if !ok {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("term %q: %w", urn, errors.ErrTermNotFound),
			"Vocabulary", "removeTerm", "term lookup")
	}
	v.terms[ref] = Term{Ref: ref, Type: TypeNull}
	delete(v.byURN, urn)
	return nil
}
