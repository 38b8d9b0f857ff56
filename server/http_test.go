package server

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
)

func parse(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	return readRequest(bufio.NewReader(strings.NewReader(raw)),
		DefaultMaxHeaderBytes, DefaultMaxBodyBytes)
}

func TestParseSimpleGet(t *testing.T) {
	req, err := parse(t, "GET /path?q=1 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/path?q=1", req.Target)
	assert.Equal(t, "/path", req.Path)
	assert.Equal(t, "q=1", req.Query)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "example.com", req.Header("Host"))
	assert.Empty(t, req.Body)
	assert.True(t, req.keepAlive())
}

func TestParseToleratesBareLF(t *testing.T) {
	req, err := parse(t, "GET / HTTP/1.1\nHost: a\n\n")
	require.NoError(t, err)
	assert.Equal(t, "a", req.Header("Host"))
}

func TestParseRequestLineErrors(t *testing.T) {
	tests := []string{
		"GET /\r\n\r\n",                  // two tokens
		"GET  / HTTP/1.1\r\n\r\n",        // double space makes an empty token
		"GET / HTTP/2.0\r\n\r\n",         // unsupported protocol
		"GET / HTTP/1.1 extra\r\n\r\n",   // four tokens
		"completely bogus line\r\n\r\n",  // no protocol token
	}
	for _, raw := range tests {
		_, err := parse(t, raw)
		assert.ErrorIs(t, err, errors.ErrRequestLineMalformed, "%q", raw)
	}
}

func TestParseEmptyStreamIsEOF(t *testing.T) {
	_, err := parse(t, "")
	assert.Equal(t, io.EOF, err)
}

func TestParseTruncatedHeadersIsMalformed(t *testing.T) {
	_, err := parse(t, "GET / HTTP/1.1\r\nHost: a")
	assert.ErrorIs(t, err, errors.ErrMalformed)
}

func TestParseHeaderCap(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Pad: " + strings.Repeat("a", 100) + "\r\n\r\n"
	_, err := readRequest(bufio.NewReader(strings.NewReader(raw)), 64, DefaultMaxBodyBytes)
	assert.ErrorIs(t, err, errors.ErrHeadersTooLarge)
}

func TestParseContentLengthBody(t *testing.T) {
	req, err := parse(t, "POST /submit HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(req.Body))
}

func TestParseBodyCap(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n" + strings.Repeat("x", 100)
	_, err := readRequest(bufio.NewReader(strings.NewReader(raw)), DefaultMaxHeaderBytes, 10)
	assert.ErrorIs(t, err, errors.ErrHeadersTooLarge)
}

func TestParseBadContentLength(t *testing.T) {
	_, err := parse(t, "POST / HTTP/1.1\r\nContent-Length: nope\r\n\r\n")
	assert.ErrorIs(t, err, errors.ErrMalformed)
}

func TestParseChunkedBody(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	req, err := parse(t, raw)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(req.Body))
}

func TestParseChunkedWithExtension(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5;name=value\r\nhello\r\n0\r\n\r\n"
	req, err := parse(t, raw)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(req.Body))
}

func TestParseUnsupportedTransferCoding(t *testing.T) {
	_, err := parse(t, "POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n")
	assert.ErrorIs(t, err, errors.ErrUnsupportedTransfer)
}

func TestParseBadChunkSize(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n"
	_, err := parse(t, raw)
	assert.ErrorIs(t, err, errors.ErrMalformed)
}

func TestKeepAliveRules(t *testing.T) {
	tests := []struct {
		proto, conn string
		want        bool
	}{
		{"HTTP/1.1", "", true},
		{"HTTP/1.1", "keep-alive", true},
		{"HTTP/1.1", "close", false},
		{"HTTP/1.0", "", false},
		{"HTTP/1.0", "keep-alive", true},
		{"HTTP/1.0", "close", false},
	}
	for _, tt := range tests {
		raw := "GET / " + tt.proto + "\r\n"
		if tt.conn != "" {
			raw += "Connection: " + tt.conn + "\r\n"
		}
		req, err := parse(t, raw+"\r\n")
		require.NoError(t, err)
		assert.Equal(t, tt.want, req.keepAlive(), "%s %q", tt.proto, tt.conn)
	}
}
