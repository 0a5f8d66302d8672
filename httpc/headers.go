package httpc

import (
	"strconv"
	"strings"
	"time"
)

// maxETagLength bounds the entity tag kept from the ETag header; longer
// values are truncated with a warning.
const maxETagLength = 94

// VerbSet is the bitset of request methods an Allow header advertises.
type VerbSet uint8

const (
	VerbHead VerbSet = 1 << iota
	VerbGet
	VerbPut
	VerbMove
	VerbPost
	VerbDelete
	VerbOptions
)

// Has reports whether all verbs in v are present.
func (s VerbSet) Has(v VerbSet) bool { return s&v == v }

func (s VerbSet) String() string {
	names := []struct {
		bit  VerbSet
		name string
	}{
		{VerbHead, "HEAD"}, {VerbGet, "GET"}, {VerbPut, "PUT"}, {VerbMove, "MOVE"},
		{VerbPost, "POST"}, {VerbDelete, "DELETE"}, {VerbOptions, "OPTIONS"},
	}
	var parts []string
	for _, n := range names {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// Response collects the pieces of one parsed response header block.
type Response struct {
	Code       int
	StatusLine string

	// ContentLength is -1 when the header is absent.
	ContentLength int64

	Chunked bool
	Close   bool

	// AuthScheme is the first word of WWW-Authenticate, typically
	// "Basic" or "Digest".
	AuthScheme string

	ETag     string
	WeakETag bool

	LastModified time.Time

	Allow VerbSet
}

// parseStatusLine extracts the status code from a line of the form
// "HTTP/1.1 200 OK".
func parseStatusLine(line string) (int, error) {
	if !strings.HasPrefix(line, "HTTP/") {
		return 0, &ParseError{What: "status line", Line: line}
	}
	rest := line[strings.IndexByte(line, ' ')+1:]
	if i := strings.IndexByte(rest, ' '); i > 0 {
		rest = rest[:i]
	}
	code, err := strconv.Atoi(rest)
	if err != nil || code < 100 || code > 599 {
		return 0, &ParseError{What: "status code", Line: line}
	}
	return code, nil
}

// parseHeader folds one header line into the response. Unknown headers
// are skipped; malformed values of known headers degrade rather than
// abort the dialogue.
func (c *Client) parseHeader(resp *Response, line string) {
	colon := strings.IndexByte(line, ':')
	if colon < 1 {
		return
	}
	name := strings.ToLower(strings.TrimSpace(line[:colon]))
	value := strings.TrimSpace(line[colon+1:])

	switch name {
	case "content-length":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			c.logger.Warn("unusable Content-Length, ignoring", "value", value)
			resp.ContentLength = 0
			return
		}
		resp.ContentLength = n

	case "connection":
		if strings.EqualFold(value, "close") {
			resp.Close = true
		}

	case "www-authenticate":
		if i := strings.IndexByte(value, ' '); i > 0 {
			value = value[:i]
		}
		resp.AuthScheme = value

	case "transfer-encoding":
		if strings.EqualFold(value, "chunked") {
			resp.Chunked = true
		}

	case "last-modified":
		if t, ok := parseHTTPDate(value); ok {
			resp.LastModified = t
		} else {
			c.logger.Warn("unusable Last-Modified, ignoring", "value", value)
		}

	case "etag":
		if strings.HasPrefix(value, "W/") {
			resp.WeakETag = true
			value = value[2:]
		}
		value = strings.Trim(value, `"`)
		if len(value) > maxETagLength {
			c.logger.Warn("ETag too long, truncating", "length", len(value))
			value = value[:maxETagLength]
		}
		resp.ETag = value

	case "allow":
		for _, verb := range strings.Split(value, ",") {
			switch strings.ToUpper(strings.TrimSpace(verb)) {
			case "HEAD":
				resp.Allow |= VerbHead
			case "GET":
				resp.Allow |= VerbGet
			case "PUT":
				resp.Allow |= VerbPut
			case "MOVE":
				resp.Allow |= VerbMove
			case "POST":
				resp.Allow |= VerbPost
			case "DELETE":
				resp.Allow |= VerbDelete
			case "OPTIONS":
				resp.Allow |= VerbOptions
			}
		}
	}
}

// httpDateFormats are the three date layouts RFC 9110 obliges a client
// to accept, preferred form first.
var httpDateFormats = []string{
	"Mon, 02 Jan 2006 15:04:05 GMT",
	"Monday, 02-Jan-06 15:04:05 GMT",
	"Mon Jan _2 15:04:05 2006",
}

func parseHTTPDate(value string) (time.Time, bool) {
	for _, layout := range httpDateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
