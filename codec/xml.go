package codec

import (
	"bufio"
	"encoding/xml"
	"io"
	"strings"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// XMLCodecPlugin is the plugin type name of the XML codec.
const XMLCodecPlugin = "XMLCodec"

// XMLCodec writes each event as an <Event> element with one child element
// per field, all inside an <Events> document; Finish closes the document.
type XMLCodec struct {
	base

	// write framing
	started bool

	// read state, bound to one stream
	reader *bufio.Reader
	dec    *xml.Decoder
	done   bool
}

// NewXMLCodec creates an unconfigured XML codec.
func NewXMLCodec() *XMLCodec {
	return &XMLCodec{base: base{contentType: "text/xml"}}
}

// SetConfig resolves the field map.
func (c *XMLCodec) SetConfig(v *vocab.Vocabulary, cfg Config) error {
	if err := c.configure(v, cfg); err != nil {
		return err
	}
	c.started = false
	c.reader = nil
	c.dec = nil
	c.done = false
	return nil
}

// Clone returns an independent codec with fresh framing state.
func (c *XMLCodec) Clone() Codec {
	return &XMLCodec{base: c.cloneBase()}
}

// UpdateVocabulary re-resolves the field map against the new snapshot.
func (c *XMLCodec) UpdateVocabulary(v *vocab.Vocabulary) error {
	return c.refreshVocabulary(v)
}

// Read scans forward to the next <Event> element and populates the event
// from its children. Returns false when the document ends.
func (c *XMLCodec) Read(r *bufio.Reader, e *event.Event) (bool, error) {
	e.Clear()
	if eos, err := c.checkEventType(e); eos || err != nil {
		return false, err
	}

	if c.reader != r {
		c.reader = r
		c.dec = xml.NewDecoder(r)
		c.done = false
	}
	if c.done {
		return false, nil
	}

	values := make(map[string]string)
	var current string
	var text strings.Builder
	inEvent := false
	for {
		tok, err := c.dec.Token()
		if err == io.EOF {
			c.done = true
			return false, nil
		}
		if err != nil {
			return false, errors.WrapMalformed(err, "XMLCodec", "Read", "token scan")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inEvent {
				if t.Name.Local == "Event" {
					inEvent = true
				}
				continue
			}
			current = t.Name.Local
			text.Reset()
		case xml.CharData:
			if inEvent && current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if !inEvent {
				continue
			}
			if t.Name.Local == "Event" {
				return true, c.populate(e, values)
			}
			if t.Name.Local == current {
				values[current] = text.String()
				current = ""
			}
		}
	}
}

func (c *XMLCodec) populate(e *event.Event, values map[string]string) error {
	for _, f := range c.fields {
		text, ok := values[f.name]
		if !ok {
			continue
		}
		if err := setValue(e, f, text); err != nil {
			e.Clear()
			return err
		}
	}
	return nil
}

// Write serializes one event, opening the document first if needed.
func (c *XMLCodec) Write(w io.Writer, e *event.Event) error {
	var sb strings.Builder
	if !c.started {
		sb.WriteString("<Events>\n")
		c.started = true
	}
	sb.WriteString("<Event>")
	for _, f := range c.fields {
		text, ok := formatValue(e, f)
		if !ok {
			continue
		}
		sb.WriteByte('<')
		sb.WriteString(f.name)
		sb.WriteByte('>')
		var esc strings.Builder
		_ = xml.EscapeText(&esc, []byte(text))
		sb.WriteString(esc.String())
		sb.WriteString("</")
		sb.WriteString(f.name)
		sb.WriteByte('>')
	}
	sb.WriteString("</Event>\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.WrapIO(err, "XMLCodec", "Write", "element write")
	}
	return nil
}

// Finish closes the document; an empty stream becomes "<Events></Events>".
func (c *XMLCodec) Finish(w io.Writer) error {
	out := "</Events>\n"
	if !c.started {
		out = "<Events></Events>\n"
	}
	c.started = false
	if _, err := io.WriteString(w, out); err != nil {
		return errors.WrapIO(err, "XMLCodec", "Finish", "document close")
	}
	return nil
}

var _ Codec = (*XMLCodec)(nil)
