package server

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/vincentyang1210/pion/errors"
)

// Request is the immutable parsed form of one HTTP request.
type Request struct {
	Method     string
	Target     string // request target as sent, including any query
	Path       string // target with the query stripped
	Query      string
	Proto      string // "HTTP/1.0" or "HTTP/1.1"
	Headers    textproto.MIMEHeader
	Body       []byte
	RemoteAddr string
}

// Header returns the first value of a header, canonicalized.
func (r *Request) Header(name string) string {
	return r.Headers.Get(name)
}

// keepAlive reports whether the connection stays open after the response:
// HTTP/1.1 unless "Connection: close", HTTP/1.0 only with
// "Connection: keep-alive".
func (r *Request) keepAlive() bool {
	conn := strings.ToLower(r.Header("Connection"))
	if r.Proto == "HTTP/1.1" {
		return conn != "close"
	}
	return conn == "keep-alive"
}

// readRequest incrementally parses one request from the stream. A clean
// end-of-stream before any byte of the request line yields io.EOF.
func readRequest(br *bufio.Reader, maxHeaderBytes, maxBodyBytes int) (*Request, error) {
	line, err := readLine(br, maxHeaderBytes)
	if err != nil {
		return nil, err
	}

	req := &Request{}
	if err := parseRequestLine(line, req); err != nil {
		return nil, err
	}

	req.Headers = make(textproto.MIMEHeader)
	total := len(line)
	for {
		line, err := readLine(br, maxHeaderBytes-total)
		if err != nil {
			if err == io.EOF {
				return nil, errors.WrapMalformed(
					fmt.Errorf("stream ended inside headers: %w", errors.ErrMalformed),
					"HTTPParser", "readRequest", "header read")
			}
			return nil, err
		}
		if line == "" {
			break
		}
		total += len(line) + 2
		if total > maxHeaderBytes {
			return nil, errors.WrapKind(errors.KindMalformed, errors.ErrHeadersTooLarge,
				"HTTPParser", "readRequest", "header size check")
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, errors.WrapMalformed(
				fmt.Errorf("bad header line %q: %w", line, errors.ErrMalformed),
				"HTTPParser", "readRequest", "header parse")
		}
		req.Headers.Add(name, strings.TrimSpace(value))
	}

	if err := readBody(br, req, maxBodyBytes); err != nil {
		return nil, err
	}
	return req, nil
}

// readLine reads one CRLF-terminated line, tolerating bare LF. The limit
// bounds the line length.
func readLine(br *bufio.Reader, limit int) (string, error) {
	if limit <= 0 {
		return "", errors.WrapKind(errors.KindMalformed, errors.ErrHeadersTooLarge,
			"HTTPParser", "readLine", "header size check")
	}
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() == 0 {
				return "", io.EOF
			}
			if err == io.EOF {
				return "", errors.WrapMalformed(
					fmt.Errorf("unterminated line: %w", errors.ErrMalformed),
					"HTTPParser", "readLine", "line read")
			}
			return "", errors.WrapIO(err, "HTTPParser", "readLine", "byte read")
		}
		if b == '\n' {
			return strings.TrimSuffix(sb.String(), "\r"), nil
		}
		sb.WriteByte(b)
		if sb.Len() > limit {
			return "", errors.WrapKind(errors.KindMalformed, errors.ErrHeadersTooLarge,
				"HTTPParser", "readLine", "line size check")
		}
	}
}

// parseRequestLine parses "METHOD SP request-target SP HTTP/x.y" strictly.
func parseRequestLine(line string, req *Request) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return errors.WrapKind(errors.KindMalformed,
			fmt.Errorf("request line %q: %w", line, errors.ErrRequestLineMalformed),
			"HTTPParser", "parseRequestLine", "token count check")
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if method == "" || target == "" {
		return errors.WrapKind(errors.KindMalformed, errors.ErrRequestLineMalformed,
			"HTTPParser", "parseRequestLine", "token check")
	}
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return errors.WrapKind(errors.KindMalformed,
			fmt.Errorf("protocol %q: %w", proto, errors.ErrRequestLineMalformed),
			"HTTPParser", "parseRequestLine", "protocol check")
	}

	req.Method = method
	req.Target = target
	req.Proto = proto
	req.Path, req.Query, _ = strings.Cut(target, "?")
	return nil
}

// readBody consumes the request body per Content-Length or chunked
// transfer coding. Any other transfer coding is unsupported.
func readBody(br *bufio.Reader, req *Request, maxBodyBytes int) error {
	if te := strings.ToLower(req.Header("Transfer-Encoding")); te != "" {
		if te != "chunked" {
			return errors.WrapKind(errors.KindMalformed,
				fmt.Errorf("transfer coding %q: %w", te, errors.ErrUnsupportedTransfer),
				"HTTPParser", "readBody", "transfer coding check")
		}
		body, err := readChunked(br, maxBodyBytes)
		if err != nil {
			return err
		}
		req.Body = body
		return nil
	}

	cl := req.Header("Content-Length")
	if cl == "" {
		return nil
	}
	n, err := strconv.Atoi(cl)
	if err != nil || n < 0 {
		return errors.WrapMalformed(
			fmt.Errorf("content length %q: %w", cl, errors.ErrMalformed),
			"HTTPParser", "readBody", "content length parse")
	}
	if n > maxBodyBytes {
		return errors.WrapKind(errors.KindMalformed, errors.ErrHeadersTooLarge,
			"HTTPParser", "readBody", "body size check")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(br, body); err != nil {
		return errors.WrapMalformed(
			fmt.Errorf("short body: %w", errors.ErrMalformed),
			"HTTPParser", "readBody", "body read")
	}
	req.Body = body
	return nil
}

// readChunked decodes a chunked body: size lines in hex, chunk data, a
// zero-size terminator and an optional trailer ended by an empty line.
func readChunked(br *bufio.Reader, maxBodyBytes int) ([]byte, error) {
	var body []byte
	for {
		line, err := readLine(br, 1024)
		if err != nil {
			return nil, errors.WrapMalformed(
				fmt.Errorf("chunk size read: %w", errors.ErrMalformed),
				"HTTPParser", "readChunked", "size line read")
		}
		// ignore chunk extensions
		sizeHex, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeHex), 16, 64)
		if err != nil || size < 0 {
			return nil, errors.WrapMalformed(
				fmt.Errorf("chunk size %q: %w", line, errors.ErrMalformed),
				"HTTPParser", "readChunked", "size parse")
		}
		if size == 0 {
			break
		}
		if len(body)+int(size) > maxBodyBytes {
			return nil, errors.WrapKind(errors.KindMalformed, errors.ErrHeadersTooLarge,
				"HTTPParser", "readChunked", "body size check")
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, errors.WrapMalformed(
				fmt.Errorf("short chunk: %w", errors.ErrMalformed),
				"HTTPParser", "readChunked", "chunk read")
		}
		body = append(body, chunk...)
		// chunk data is followed by CRLF
		if _, err := readLine(br, 2); err != nil {
			return nil, errors.WrapMalformed(
				fmt.Errorf("missing chunk terminator: %w", errors.ErrMalformed),
				"HTTPParser", "readChunked", "terminator read")
		}
	}
	// consume trailer lines up to the empty line
	for {
		line, err := readLine(br, 1024)
		if err != nil || line == "" {
			break
		}
	}
	return body, nil
}
