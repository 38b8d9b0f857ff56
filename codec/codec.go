// Package codec converts between byte streams and events. Each codec is
// bound to one event type and an ordered field map from vocabulary terms to
// on-the-wire field names. Built-in variants cover line-oriented log
// formats, JSON arrays and XML documents; additional variants can be
// plugin-loaded.
package codec

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// Codec reads and writes events of a single event type.
//
// Read consumes one record and populates the event, returning false at
// clean end-of-stream with the event left empty. Write serializes one
// record; Finish emits any trailer the framing needs (the closing bracket
// for JSON arrays, the document close for XML, nothing for line formats).
// Clone produces an independent instance with identical configuration and
// fresh stream state so each worker can own a private parser.
type Codec interface {
	ID() string
	Name() string
	Comment() string
	ContentType() string
	EventType() vocab.TermRef

	SetConfig(v *vocab.Vocabulary, cfg Config) error
	Read(r *bufio.Reader, e *event.Event) (bool, error)
	Write(w io.Writer, e *event.Event) error
	Finish(w io.Writer) error
	Clone() Codec
	UpdateVocabulary(v *vocab.Vocabulary) error
}

// FieldConfig declares one field of a codec's field map.
type FieldConfig struct {
	Term     string `xml:"term,attr"`
	Start    string `xml:"start,attr"`
	End      string `xml:"end,attr"`
	Optional bool   `xml:"optional,attr"`
	Name     string `xml:",chardata"`
}

// Config is the XML configuration accepted by every codec.
type Config struct {
	XMLName   xml.Name      `xml:"Codec"`
	Plugin    string        `xml:"Plugin"`
	Name      string        `xml:"Name"`
	Comment   string        `xml:"Comment"`
	EventType string        `xml:"EventType"`
	Format    string        `xml:"Format"`
	Fields    []FieldConfig `xml:"Field"`

	// LenientRead makes Read on an event of the undefined event type
	// return clean end-of-stream instead of a wrong-event-type error.
	LenientRead bool `xml:"LenientRead"`
}

// ParseConfig decodes a codec configuration document.
func ParseConfig(doc []byte) (Config, error) {
	var cfg Config
	if err := xml.Unmarshal(doc, &cfg); err != nil {
		return Config{}, errors.WrapMalformed(err, "Codec", "ParseConfig", "XML decode")
	}
	return cfg, nil
}

// field is a resolved field map entry.
type field struct {
	name     string
	urn      string
	term     vocab.Term
	start    string
	end      string
	optional bool
}

// base carries the identity, event type and field map shared by the
// built-in codecs.
type base struct {
	id          string
	name        string
	comment     string
	contentType string
	eventType   vocab.TermRef
	eventURN    string
	fields      []field
	lenient     bool
}

func (b *base) ID() string               { return b.id }
func (b *base) Name() string             { return b.name }
func (b *base) Comment() string          { return b.comment }
func (b *base) ContentType() string      { return b.contentType }
func (b *base) EventType() vocab.TermRef { return b.eventType }
func (b *base) setID(id string)          { b.id = id }

// configure resolves the event type and the field map against a vocabulary
// snapshot.
func (b *base) configure(v *vocab.Vocabulary, cfg Config) error {
	if cfg.EventType == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Codec", "SetConfig", "EventType element check")
	}
	typeRef, ok := v.FindTerm(cfg.EventType)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("event type %q: %w", cfg.EventType, errors.ErrUnknownEventType),
			"Codec", "SetConfig", "event type lookup")
	}
	typeTerm, _ := v.Term(typeRef)
	if typeTerm.Type != vocab.TypeObject {
		return errors.WrapInvalid(
			fmt.Errorf("event type %q is %s: %w", cfg.EventType, typeTerm.Type, errors.ErrNotAnObject),
			"Codec", "SetConfig", "event type kind check")
	}

	fields := make([]field, 0, len(cfg.Fields))
	for _, fc := range cfg.Fields {
		if fc.Term == "" || fc.Name == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig,
				"Codec", "SetConfig", "Field element check")
		}
		ref, ok := v.FindTerm(fc.Term)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("field term %q: %w", fc.Term, errors.ErrTermNotFound),
				"Codec", "SetConfig", "field term lookup")
		}
		term, _ := v.Term(ref)
		fields = append(fields, field{
			name:     fc.Name,
			urn:      fc.Term,
			term:     term,
			start:    fc.Start,
			end:      fc.End,
			optional: fc.Optional,
		})
	}

	b.name = cfg.Name
	b.comment = cfg.Comment
	b.eventType = typeRef
	b.eventURN = cfg.EventType
	b.fields = fields
	b.lenient = cfg.LenientRead
	return nil
}

// refreshVocabulary re-resolves the event type and every field term against
// a new vocabulary snapshot. A term that no longer resolves fails the whole
// update.
func (b *base) refreshVocabulary(v *vocab.Vocabulary) error {
	typeRef, ok := v.FindTerm(b.eventURN)
	if !ok {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("event type %q: %w", b.eventURN, errors.ErrTermNoLongerDefined),
			"Codec", "UpdateVocabulary", "event type lookup")
	}
	for i := range b.fields {
		ref, ok := v.FindTerm(b.fields[i].urn)
		if !ok {
			return errors.WrapKind(errors.KindNotFound,
				fmt.Errorf("field term %q: %w", b.fields[i].urn, errors.ErrTermNoLongerDefined),
				"Codec", "UpdateVocabulary", "field term lookup")
		}
		b.fields[i].term, _ = v.Term(ref)
	}
	b.eventType = typeRef
	return nil
}

// checkEventType enforces the codec's event-type contract for Read. The
// boolean result reports whether Read should return clean end-of-stream
// (lenient mode on the undefined event type).
func (b *base) checkEventType(e *event.Event) (bool, error) {
	if e.Type() == b.eventType {
		return false, nil
	}
	if e.Type() == vocab.UndefinedTermRef && b.lenient {
		return true, nil
	}
	return false, errors.WrapKind(errors.KindTypeMismatch,
		fmt.Errorf("event type %d, codec expects %d: %w",
			e.Type(), b.eventType, errors.ErrWrongEventType),
		"Codec", "Read", "event type check")
}

// cloneBase copies identity and field map; stream state is never shared.
func (b *base) cloneBase() base {
	c := *b
	c.fields = make([]field, len(b.fields))
	copy(c.fields, b.fields)
	return c
}

// setValue parses text by the field's term type and appends it to the event.
func setValue(e *event.Event, f field, text string) error {
	switch f.term.Type {
	case vocab.TypeString:
		e.SetString(f.term.Ref, text)
	case vocab.TypeUInt:
		n, err := parseUint(text)
		if err != nil {
			return errors.WrapMalformed(
				fmt.Errorf("field %s: %w", f.name, err), "Codec", "Read", "uint parse")
		}
		e.SetUInt(f.term.Ref, n)
	case vocab.TypeInt:
		n, err := parseInt(text)
		if err != nil {
			return errors.WrapMalformed(
				fmt.Errorf("field %s: %w", f.name, err), "Codec", "Read", "int parse")
		}
		e.SetInt(f.term.Ref, n)
	case vocab.TypeFloat:
		fl, err := parseFloat32(text)
		if err != nil {
			return errors.WrapMalformed(
				fmt.Errorf("field %s: %w", f.name, err), "Codec", "Read", "float parse")
		}
		e.SetFloat(f.term.Ref, fl)
	case vocab.TypeDouble:
		fl, err := parseFloat64(text)
		if err != nil {
			return errors.WrapMalformed(
				fmt.Errorf("field %s: %w", f.name, err), "Codec", "Read", "double parse")
		}
		e.SetDouble(f.term.Ref, fl)
	case vocab.TypeDateTime:
		ts, err := parseDateTime(text, f.term.Format)
		if err != nil {
			return errors.WrapMalformed(
				fmt.Errorf("field %s: %w", f.name, err), "Codec", "Read", "datetime parse")
		}
		e.SetDateTime(f.term.Ref, ts)
	default:
		return errors.WrapInvalid(
			fmt.Errorf("field %s has unsupported term type %s", f.name, f.term.Type),
			"Codec", "Read", "term type check")
	}
	return nil
}

// formatValue renders the event's first value for the field as text. The
// boolean result is false when the field is not set on the event.
func formatValue(e *event.Event, f field) (string, bool) {
	v, ok := e.Get(f.term.Ref)
	if !ok {
		return "", false
	}
	layout := f.term.Format
	if layout == "" {
		layout = defaultDateLayout
	}
	return v.Format(layout), true
}
