package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// JSONCodecPlugin is the plugin type name of the JSON codec.
const JSONCodecPlugin = "JSONCodec"

// JSONCodec writes each event as one JSON object inside an array; Finish
// closes the array. Read consumes objects from an array until the closing
// bracket.
type JSONCodec struct {
	base

	// write framing
	started bool

	// read state, bound to one stream
	reader *bufio.Reader
	dec    *json.Decoder
	opened bool
	done   bool
}

// NewJSONCodec creates an unconfigured JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{base: base{contentType: "text/json"}}
}

// SetConfig resolves the field map.
func (c *JSONCodec) SetConfig(v *vocab.Vocabulary, cfg Config) error {
	if err := c.configure(v, cfg); err != nil {
		return err
	}
	c.started = false
	c.resetRead()
	return nil
}

// Clone returns an independent codec with fresh framing state.
func (c *JSONCodec) Clone() Codec {
	return &JSONCodec{base: c.cloneBase()}
}

// UpdateVocabulary re-resolves the field map against the new snapshot.
func (c *JSONCodec) UpdateVocabulary(v *vocab.Vocabulary) error {
	return c.refreshVocabulary(v)
}

func (c *JSONCodec) resetRead() {
	c.reader = nil
	c.dec = nil
	c.opened = false
	c.done = false
}

// Read consumes one object from the array, returning false once the array
// is closed.
func (c *JSONCodec) Read(r *bufio.Reader, e *event.Event) (bool, error) {
	e.Clear()
	if eos, err := c.checkEventType(e); eos || err != nil {
		return false, err
	}

	if c.reader != r {
		c.resetRead()
		c.reader = r
		c.dec = json.NewDecoder(r)
		c.dec.UseNumber()
	}
	if c.done {
		return false, nil
	}
	if !c.opened {
		tok, err := c.dec.Token()
		if err == io.EOF {
			c.done = true
			return false, nil
		}
		if err != nil {
			return false, errors.WrapMalformed(err, "JSONCodec", "Read", "array open")
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return false, errors.WrapMalformed(
				fmt.Errorf("expected array, got %v: %w", tok, errors.ErrMalformed),
				"JSONCodec", "Read", "array open")
		}
		c.opened = true
	}
	if !c.dec.More() {
		// consume the closing bracket
		if _, err := c.dec.Token(); err != nil && err != io.EOF {
			return false, errors.WrapMalformed(err, "JSONCodec", "Read", "array close")
		}
		c.done = true
		return false, nil
	}

	var obj map[string]json.RawMessage
	if err := c.dec.Decode(&obj); err != nil {
		return false, errors.WrapMalformed(err, "JSONCodec", "Read", "object decode")
	}
	for _, f := range c.fields {
		raw, ok := obj[f.name]
		if !ok {
			continue
		}
		text, err := rawToText(raw)
		if err != nil {
			e.Clear()
			return false, errors.WrapMalformed(
				fmt.Errorf("field %s: %w", f.name, err), "JSONCodec", "Read", "value decode")
		}
		if err := setValue(e, f, text); err != nil {
			e.Clear()
			return false, err
		}
	}
	return true, nil
}

// Write serializes one event as an object, opening the array first if
// needed.
func (c *JSONCodec) Write(w io.Writer, e *event.Event) error {
	var sb strings.Builder
	if !c.started {
		sb.WriteByte('[')
		c.started = true
	} else {
		sb.WriteByte(',')
	}
	sb.WriteByte('\n')

	sb.WriteByte('{')
	first := true
	for _, f := range c.fields {
		v, ok := e.Get(f.term.Ref)
		if !ok {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(f.name)
		sb.Write(key)
		sb.WriteByte(':')
		sb.WriteString(jsonValue(v, f))
	}
	sb.WriteByte('}')

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.WrapIO(err, "JSONCodec", "Write", "object write")
	}
	return nil
}

// Finish closes the array; an empty stream becomes "[]".
func (c *JSONCodec) Finish(w io.Writer) error {
	out := "\n]\n"
	if !c.started {
		out = "[]\n"
	}
	c.started = false
	if _, err := io.WriteString(w, out); err != nil {
		return errors.WrapIO(err, "JSONCodec", "Finish", "array close")
	}
	return nil
}

// jsonValue renders a tagged value as a JSON literal. Timestamps keep the
// field's text layout inside a JSON string.
func jsonValue(v event.Value, f field) string {
	switch v.Tag {
	case vocab.TypeUInt, vocab.TypeInt, vocab.TypeFloat, vocab.TypeDouble:
		return v.Format("")
	default:
		layout := f.term.Format
		if layout == "" {
			layout = defaultDateLayout
		}
		b, _ := json.Marshal(v.Format(layout))
		return string(b)
	}
}

// rawToText flattens a JSON literal to the text form setValue expects.
func rawToText(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if len(s) > 0 && s[0] == '"' {
		var out string
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", err
		}
		return out, nil
	}
	// numbers and literals pass through as-is
	if _, err := strconv.ParseFloat(s, 64); err != nil && s != "true" && s != "false" && s != "null" {
		return "", fmt.Errorf("unsupported JSON value %s", s)
	}
	return s, nil
}

var _ Codec = (*JSONCodec)(nil)
