package codec

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/event"
	"github.com/vincentyang1210/pion/vocab"
)

// LogCodecPlugin is the plugin type name of the line-oriented codec.
const LogCodecPlugin = "LogCodec"

// FormatExtended selects the extended log format: a "#Version" /
// "#Fields" header before the first record, comment lines skipped on read.
const FormatExtended = "extended"

// LogCodec reads and writes one event per newline-terminated line. Fields
// are space-separated; a field may declare start/end delimiters (brackets
// around timestamps, quotes around requests), and values containing spaces
// are quoted. Missing values are rendered as "-", or as empty delimiters
// for delimited fields.
type LogCodec struct {
	base
	extended    bool
	wroteHeader bool
}

// NewLogCodec creates an unconfigured log codec.
func NewLogCodec() *LogCodec {
	return &LogCodec{base: base{contentType: "text/ascii"}}
}

// SetConfig resolves the field map and selects the line format.
func (c *LogCodec) SetConfig(v *vocab.Vocabulary, cfg Config) error {
	if err := c.configure(v, cfg); err != nil {
		return err
	}
	c.extended = cfg.Format == FormatExtended
	c.wroteHeader = false
	return nil
}

// Clone returns an independent codec with the same configuration and a
// fresh header state.
func (c *LogCodec) Clone() Codec {
	return &LogCodec{base: c.cloneBase(), extended: c.extended}
}

// UpdateVocabulary re-resolves the field map against the new snapshot.
func (c *LogCodec) UpdateVocabulary(v *vocab.Vocabulary) error {
	return c.refreshVocabulary(v)
}

// Read consumes one line and populates the event. Comment lines are skipped
// in the extended format. Returns false at clean end-of-stream.
func (c *LogCodec) Read(r *bufio.Reader, e *event.Event) (bool, error) {
	e.Clear()
	if eos, err := c.checkEventType(e); eos || err != nil {
		return false, err
	}

	var line string
	for {
		var err error
		line, err = r.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, errors.WrapIO(err, "LogCodec", "Read", "line read")
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == io.EOF {
				return false, nil
			}
			continue
		}
		if c.extended && line[0] == '#' {
			if err == io.EOF {
				return false, nil
			}
			continue
		}
		break
	}

	pos := 0
	for _, f := range c.fields {
		for pos < len(line) && line[pos] == ' ' {
			pos++
		}
		if pos >= len(line) {
			break
		}
		token, next, err := scanField(line, pos, f)
		if err != nil {
			e.Clear()
			return false, err
		}
		pos = next
		if token == "" || token == "-" {
			continue
		}
		if err := setValue(e, f, token); err != nil {
			e.Clear()
			return false, err
		}
	}
	return true, nil
}

// Write serializes one event as a single line.
func (c *LogCodec) Write(w io.Writer, e *event.Event) error {
	var sb strings.Builder
	if c.extended && !c.wroteHeader {
		sb.WriteString("#Version: 1.0\n#Fields:")
		for _, f := range c.fields {
			sb.WriteByte(' ')
			sb.WriteString(f.name)
		}
		sb.WriteByte('\n')
		c.wroteHeader = true
	}

	for i, f := range c.fields {
		if i > 0 {
			sb.WriteByte(' ')
		}
		text, ok := formatValue(e, f)
		switch {
		case f.start != "":
			sb.WriteString(f.start)
			if ok {
				sb.WriteString(escapeDelimited(text, f.end))
			}
			sb.WriteString(f.end)
		case !ok:
			sb.WriteByte('-')
		case strings.ContainsAny(text, " \""):
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(text, `"`, `\"`))
			sb.WriteByte('"')
		default:
			sb.WriteString(text)
		}
	}
	sb.WriteByte('\n')

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.WrapIO(err, "LogCodec", "Write", "line write")
	}
	return nil
}

// Finish is a no-op; line formats carry no trailer.
func (c *LogCodec) Finish(io.Writer) error { return nil }

// escapeDelimited backslash-escapes the end delimiter (and backslash
// itself) inside a delimited value so the reader finds the real closer.
func escapeDelimited(text, end string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	return strings.ReplaceAll(text, end, `\`+end)
}

// scanField extracts one field token starting at pos, honoring configured
// delimiters and double quoting. It returns the token and the position
// after it.
func scanField(line string, pos int, f field) (string, int, error) {
	if f.start != "" {
		if !strings.HasPrefix(line[pos:], f.start) {
			return "", 0, errors.WrapMalformed(
				fmt.Errorf("field %s: missing %q delimiter: %w", f.name, f.start, errors.ErrMalformed),
				"LogCodec", "Read", "delimiter scan")
		}
		pos += len(f.start)
		var sb strings.Builder
		for pos < len(line) {
			if line[pos] == '\\' && pos+1 < len(line) {
				if strings.HasPrefix(line[pos+1:], f.end) {
					sb.WriteString(f.end)
					pos += 1 + len(f.end)
					continue
				}
				if line[pos+1] == '\\' {
					sb.WriteByte('\\')
					pos += 2
					continue
				}
			}
			if strings.HasPrefix(line[pos:], f.end) {
				return sb.String(), pos + len(f.end), nil
			}
			sb.WriteByte(line[pos])
			pos++
		}
		return "", 0, errors.WrapMalformed(
			fmt.Errorf("field %s: missing %q delimiter: %w", f.name, f.end, errors.ErrMalformed),
			"LogCodec", "Read", "delimiter scan")
	}

	if line[pos] == '"' {
		pos++
		var sb strings.Builder
		for pos < len(line) {
			ch := line[pos]
			if ch == '\\' && pos+1 < len(line) && line[pos+1] == '"' {
				sb.WriteByte('"')
				pos += 2
				continue
			}
			if ch == '"' {
				return sb.String(), pos + 1, nil
			}
			sb.WriteByte(ch)
			pos++
		}
		return "", 0, errors.WrapMalformed(
			fmt.Errorf("field %s: unterminated quote: %w", f.name, errors.ErrMalformed),
			"LogCodec", "Read", "quote scan")
	}

	end := strings.IndexByte(line[pos:], ' ')
	if end < 0 {
		return line[pos:], len(line), nil
	}
	return line[pos : pos+end], pos + end, nil
}

var _ Codec = (*LogCodec)(nil)
