package httpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/trace"
)

// maxRequestLength bounds a single request or header line.
const maxRequestLength = 1024

// resource builds the request target: absolute form through a proxy,
// origin form otherwise. A leading slash is inserted when absent.
func (c *Client) resource(path, filename string) string {
	rel := path
	if filename != "" {
		if rel == "" || !strings.HasSuffix(rel, "/") {
			rel += "/"
		}
		rel += filename
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}

	if c.proxyHost != "" {
		scheme, defPort := "http", "80"
		if c.useTLS {
			scheme, defPort = "https", "443"
		}
		host := c.host
		if c.port != defPort {
			host += ":" + c.port
		}
		return scheme + "://" + host + rel
	}
	return rel
}

func (c *Client) hostHeader() string {
	defPort := "80"
	if c.useTLS {
		defPort = "443"
	}
	if c.port == defPort {
		return c.host
	}
	return c.host + ":" + c.port
}

// sendRequest writes the request line, the standard header set, the
// extra headers and the blank-line terminator in one write. Header
// lines are traced individually with the authorisation value hidden.
func (c *Client) sendRequest(method, resource string, headers []string) error {
	lines := make([]string, 0, len(headers)+3)
	lines = append(lines, method+" "+resource+" HTTP/1.1")
	lines = append(lines, "Host: "+c.hostHeader())
	lines = append(lines, "User-Agent: "+userAgent)
	if c.basic != "" {
		lines = append(lines, "Authorization: "+c.basic)
	}
	lines = append(lines, headers...)

	var b strings.Builder
	for _, line := range lines {
		if len(line)+2 > maxRequestLength {
			return ErrTooLong
		}
		b.WriteString(line)
		b.WriteString("\r\n")
		if strings.HasPrefix(line, "Authorization: ") {
			line = "Authorization: <hidden>"
		}
		c.sink.Trace(trace.CommandWrite, len(line)+2, line)
	}
	b.WriteString("\r\n")

	c.logger.Debug("request", "method", method, "resource", resource)
	if _, err := c.conn.Write([]byte(b.String())); err != nil {
		return netio.Classify("write", err)
	}
	return nil
}

// readResponse parses one status line and header block. Body bytes the
// line reader may have over-read stay buffered until beginBody claims
// them.
func (c *Client) readResponse() (*Response, error) {
	var line string
	var err error
	// tolerate stray blank lines before the status line
	for {
		line, err = c.reader.ReadLine()
		if err != nil {
			return nil, netio.Classify("read", err)
		}
		if line != "" {
			break
		}
	}

	code, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}
	resp := Response{Code: code, StatusLine: line, ContentLength: -1}
	c.sink.Trace(trace.CommandRead, len(line), line)
	c.logger.Debug("response", "status", line)

	for {
		line, err = c.reader.ReadLine()
		if err != nil {
			return nil, netio.Classify("read", err)
		}
		if line == "" {
			break
		}
		c.sink.Trace(trace.CommandRead, len(line), line)
		c.parseHeader(&resp, line)
	}

	c.resp = resp
	c.lastReply = resp.StatusLine
	return &c.resp, nil
}

// beginBody sets up body accounting for the response just read and
// takes over the bytes the header reader buffered past the blank line.
func (c *Client) beginBody(method string, resp *Response) {
	if resp.Close {
		c.closeNext = true
	}
	c.inBody = false
	c.chunkedBody = false
	c.remaining = 0

	if method == "HEAD" || resp.Code < 200 || resp.Code == 204 || resp.Code == 304 {
		return
	}
	switch {
	case resp.Chunked:
		c.inBody = true
		c.chunkedBody = true
		c.remaining = -1
	case resp.ContentLength > 0:
		c.inBody = true
		c.remaining = resp.ContentLength
	case resp.ContentLength < 0:
		// no framing at all: the body runs until the server closes
		c.inBody = true
		c.remaining = -1
	}
	if c.inBody {
		c.residue = append(c.residue, c.reader.Residue()...)
	}
}

// roundTrip performs one request/response exchange, reopening the
// connection and retrying once when the server hung up in between.
func (c *Client) roundTrip(method, resource string, headers []string) (*Response, error) {
	if c.inBody {
		if err := c.flushBody(); err != nil {
			return nil, err
		}
	}

	retried := false
	for {
		if err := c.ensureLive(); err != nil {
			return nil, err
		}
		if c.simulated {
			return c.simResponse(method, resource), nil
		}

		err := c.sendRequest(method, resource, headers)
		var resp *Response
		if err == nil {
			resp, err = c.readResponse()
		}
		if err != nil {
			if !retried && (netio.IsHangup(err) || netio.IsReset(err)) {
				retried = true
				c.logger.Debug("server hung up mid-dialogue, retrying once", "method", method)
				if rErr := c.reconnect(); rErr != nil {
					return nil, rErr
				}
				continue
			}
			return nil, err
		}
		c.used = true
		c.beginBody(method, resp)
		return resp, nil
	}
}

// simResponse fabricates the reply of a simulated exchange.
func (c *Client) simResponse(method, resource string) *Response {
	c.sink.Trace(trace.CommandWrite, 0, method+" "+resource+" HTTP/1.1")
	c.resp = Response{Code: 200, StatusLine: "HTTP/1.1 200 OK", ContentLength: 0}
	c.lastReply = c.resp.StatusLine
	c.inBody = false
	c.chunkedBody = false
	c.remaining = 0
	c.used = true
	return &c.resp
}

// Head asks for the size and modification time of a remote file. When
// the server answers 400, 403, 405 or 501 the driver latches HEAD as
// unimplemented for this connection and Get stops probing with it.
//
// A content length of -1 means the server did not state one.
func (c *Client) Head(path, filename string) (int64, time.Time, error) {
	resource := c.resource(path, filename)
	resp, err := c.roundTrip("HEAD", resource, []string{"Content-length: 0"})
	if err != nil {
		return 0, time.Time{}, err
	}
	if resp.Code >= 200 && resp.Code <= 299 {
		return resp.ContentLength, resp.LastModified, nil
	}
	switch resp.Code {
	case 400, 403, 405, 501:
		c.headLatched = true
		c.logger.Debug("HEAD not implemented by server, latching", "code", resp.Code)
	}
	return 0, time.Time{}, &ProtocolError{Method: "HEAD", Resource: resource, Reply: c.lastReply, Code: resp.Code}
}

// GetOptions carries the conditional parts of a download request.
type GetOptions struct {
	// Offset resumes the transfer at this byte. 416 from the server
	// resets it to zero and retries once.
	Offset int64

	// Length is the known remote size; negative means unknown, in which
	// case a preliminary HEAD is issued when a filename is given.
	Length int64

	// ETag, when set, is sent as If-None-Match; an unchanged file comes
	// back as ErrNothingToFetch.
	ETag string
}

// Get requests a file. On success the body is pending: drain it with
// Read, or ReadChunk when the response says Transfer-Encoding: chunked.
func (c *Client) Get(path, filename string, opts GetOptions) (*Response, error) {
	resource := c.resource(path, filename)

	length := opts.Length
	if filename != "" && length < 0 && !c.headLatched && !c.simulated {
		n, _, err := c.Head(path, filename)
		switch {
		case err == nil:
			length = n
		case c.headLatched:
			// fall through without a size; Range stays open-ended
		default:
			return nil, err
		}
	}

	offset := opts.Offset
	reauthed := false
	rangeReset := false
	for {
		var headers []string
		if offset > 0 {
			if length > 0 {
				headers = append(headers, fmt.Sprintf("Range: bytes=%d-%d", offset, length-1))
			} else {
				headers = append(headers, fmt.Sprintf("Range: bytes=%d-", offset))
			}
		}
		if opts.ETag != "" {
			headers = append(headers, fmt.Sprintf("If-None-Match: %q", opts.ETag))
		}

		resp, err := c.roundTrip("GET", resource, headers)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.Code == 200 || resp.Code == 204 || resp.Code == 206:
			return resp, nil

		case resp.Code == 304:
			return nil, ErrNothingToFetch

		case resp.Code == 401:
			if err := c.flushBody(); err != nil {
				return nil, err
			}
			if err := c.handleUnauthorized("GET", resource, resp, &reauthed); err != nil {
				return nil, err
			}
			continue

		case resp.Code == 416 && !rangeReset:
			rangeReset = true
			offset = 0
			c.logger.Debug("range not satisfiable, restarting from offset 0")
			if err := c.flushBody(); err != nil {
				return nil, err
			}
			continue

		default:
			if err := c.flushBody(); err != nil {
				return nil, err
			}
			return nil, &ProtocolError{Method: "GET", Resource: resource, Reply: c.lastReply, Code: resp.Code}
		}
	}
}

// handleUnauthorized decides what a 401 means. A nil return signals
// "retry once": the Basic credentials are primed and the connection has
// been reopened. Everything else is terminal.
func (c *Client) handleUnauthorized(method, resource string, resp *Response, reauthed *bool) error {
	scheme := resp.AuthScheme
	switch {
	case strings.EqualFold(scheme, "Basic") && c.basic != "" && !*reauthed:
		*reauthed = true
		return c.reconnect()
	case scheme != "" && !strings.EqualFold(scheme, "Basic"):
		return &UnsupportedAuthError{Scheme: scheme}
	default:
		return &ProtocolError{Method: method, Resource: resource, Reply: c.lastReply, Code: resp.Code}
	}
}

// Put announces an upload of length bytes. The caller then sends the
// body with Write or WriteText and finishes with PutResponse.
func (c *Client) Put(path, filename string, length int64) error {
	resource := c.resource(path, filename)
	c.putResource = resource
	headers := []string{
		fmt.Sprintf("Content-length: %d", length),
		"Control: overwrite=1",
	}

	if c.inBody {
		if err := c.flushBody(); err != nil {
			return err
		}
	}
	retried := false
	for {
		if err := c.ensureLive(); err != nil {
			return err
		}
		if c.simulated {
			return nil
		}
		err := c.sendRequest("PUT", resource, headers)
		if err == nil {
			return nil
		}
		if !retried && (netio.IsHangup(err) || netio.IsReset(err)) {
			retried = true
			if rErr := c.reconnect(); rErr != nil {
				return rErr
			}
			continue
		}
		return err
	}
}

// PutResponse reads the reply to a finished upload. A 401 with usable
// Basic credentials, or a hangup before the reply arrived, ends with
// ErrRetryUpload on a freshly opened connection: the body is gone, so
// the caller repeats Put and the body once.
func (c *Client) PutResponse() (*Response, error) {
	resource := c.putResource
	if c.simulated {
		return c.simResponse("PUT", resource), nil
	}

	resp, err := c.readResponse()
	if err != nil {
		if netio.IsHangup(err) || netio.IsReset(err) {
			if rErr := c.reconnect(); rErr != nil {
				return nil, rErr
			}
			return nil, ErrRetryUpload
		}
		return nil, err
	}
	c.used = true
	c.beginBody("PUT", resp)

	if resp.Code >= 200 && resp.Code <= 299 {
		if err := c.flushBody(); err != nil {
			return nil, err
		}
		return resp, nil
	}

	if err := c.flushBody(); err != nil {
		return nil, err
	}
	if resp.Code == 401 {
		reauthed := false
		if err := c.handleUnauthorized("PUT", resource, resp, &reauthed); err != nil {
			return nil, err
		}
		return nil, ErrRetryUpload
	}
	return nil, &ProtocolError{Method: "PUT", Resource: resource, Reply: c.lastReply, Code: resp.Code}
}

// Delete removes a remote file.
func (c *Client) Delete(path, filename string) error {
	resource := c.resource(path, filename)
	reauthed := false
	for {
		resp, err := c.roundTrip("DELETE", resource, nil)
		if err != nil {
			return err
		}
		if err := c.flushBody(); err != nil {
			return err
		}
		if resp.Code >= 200 && resp.Code <= 299 {
			return nil
		}
		if resp.Code == 401 {
			if err := c.handleUnauthorized("DELETE", resource, resp, &reauthed); err != nil {
				return err
			}
			continue
		}
		return &ProtocolError{Method: "DELETE", Resource: resource, Reply: c.lastReply, Code: resp.Code}
	}
}

// Options asks which methods the server allows for a resource ("*" for
// the server as a whole when path is empty).
func (c *Client) Options(path string) (VerbSet, error) {
	resource := "*"
	if path != "" {
		resource = c.resource(path, "")
	}
	resp, err := c.roundTrip("OPTIONS", resource, nil)
	if err != nil {
		return 0, err
	}
	if err := c.flushBody(); err != nil {
		return 0, err
	}
	if resp.Code < 200 || resp.Code > 299 {
		return 0, &ProtocolError{Method: "OPTIONS", Resource: resource, Reply: c.lastReply, Code: resp.Code}
	}
	return resp.Allow, nil
}
