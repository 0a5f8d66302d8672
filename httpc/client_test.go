package httpc

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holger24/AFD-sub000/internal/netio"
)

// mockRequest is one parsed request as the scripted server saw it.
type mockRequest struct {
	Method  string
	Target  string
	Headers map[string]string
	Body    string

	// Conn numbers the connection the request arrived on, starting at 1.
	Conn int64
}

func (r *mockRequest) header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// startMock runs a scripted HTTP server. The handler returns the raw
// response; an empty string drops the connection. A response carrying
// "Connection: close" closes the connection after the write.
func startMock(t *testing.T, handle func(req *mockRequest) string) (host string, port int, conns *int64) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	var connCount int64
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			id := atomic.AddInt64(&connCount, 1)
			go func(conn net.Conn, id int64) {
				defer conn.Close()
				br := bufio.NewReader(conn)
				for {
					req, err := readMockRequest(br)
					if err != nil {
						return
					}
					req.Conn = id
					resp := handle(req)
					if resp == "" {
						return
					}
					if _, err := io.WriteString(conn, resp); err != nil {
						return
					}
					if strings.Contains(resp, "Connection: close") {
						return
					}
				}
			}(conn, id)
		}
	}()

	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ = strconv.Atoi(portStr)
	return host, port, &connCount
}

func readMockRequest(br *bufio.Reader) (*mockRequest, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed request line %q", line)
	}
	req := &mockRequest{Method: fields[0], Target: fields[1], Headers: make(map[string]string)}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok {
			req.Headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
		}
	}

	if cl := req.Headers["content-length"]; cl != "" && req.Method == "PUT" {
		n, err := strconv.Atoi(cl)
		if err != nil {
			return nil, err
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, err
		}
		req.Body = string(body)
	}
	return req, nil
}

func okResponse(body string) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
}

func TestGet_FixedLengthBody(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		require.Equal(t, "GET", req.Method)
		require.Equal(t, "/pub/file1.dat", req.Target)
		return okResponse("hello, remote file")
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	resp, err := c.Get("/pub", "file1.dat", GetOptions{Length: int64(len("hello, remote file"))})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)

	body, err := io.ReadAll(c)
	require.NoError(t, err)
	require.Equal(t, "hello, remote file", string(body))
}

func TestGet_ChunkedBody(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	// deliberately awkward chunk boundaries
	sizes := []int{1, 2, 3, 500, 4096, 17}

	host, port, _ := startMock(t, func(req *mockRequest) string {
		var b strings.Builder
		b.WriteString("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n")
		rest := payload
		for i := 0; len(rest) > 0; i++ {
			n := sizes[i%len(sizes)]
			if n > len(rest) {
				n = len(rest)
			}
			fmt.Fprintf(&b, "%x\r\n", n)
			b.Write(rest[:n])
			b.WriteString("\r\n")
			rest = rest[n:]
		}
		b.WriteString("0\r\n\r\n")
		return b.String()
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	resp, err := c.Get("", "data.bin", GetOptions{Length: int64(len(payload))})
	require.NoError(t, err)
	require.True(t, resp.Chunked)

	var got []byte
	var chunk []byte
	for {
		n, err := c.ReadChunk(&chunk)
		if err == ErrLastChunk {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk[:n]...)
	}
	require.Equal(t, payload, got)
}

func TestGet_NotModified(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		require.Equal(t, `"abc123"`, req.header("If-None-Match"))
		return "HTTP/1.1 304 Not Modified\r\n\r\n"
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	_, err = c.Get("", "file1.dat", GetOptions{Length: 10, ETag: "abc123"})
	require.ErrorIs(t, err, ErrNothingToFetch)
}

func TestGet_BasicAuthRetriedOnceOnFreshConnection(t *testing.T) {
	t.Parallel()
	var requests int64
	host, port, conns := startMock(t, func(req *mockRequest) string {
		atomic.AddInt64(&requests, 1)
		require.NotEmpty(t, req.header("Authorization"))
		if req.Conn == 1 {
			return "HTTP/1.1 401 Unauthorized\r\nWWW-Authenticate: Basic realm=\"afd\"\r\nContent-Length: 0\r\n\r\n"
		}
		return okResponse("granted")
	})

	c, err := Connect(host, port, WithCredentials("afd", "secret"))
	require.NoError(t, err)
	defer c.Quit()

	resp, err := c.Get("", "file1.dat", GetOptions{Length: int64(len("granted"))})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)
	require.EqualValues(t, 2, atomic.LoadInt64(&requests))
	require.EqualValues(t, 2, atomic.LoadInt64(conns))
}

func TestGet_DigestAuthNotImplemented(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		return "HTTP/1.1 401 Unauthorized\r\nWWW-Authenticate: Digest realm=\"afd\"\r\nContent-Length: 0\r\n\r\n"
	})

	c, err := Connect(host, port, WithCredentials("afd", "secret"))
	require.NoError(t, err)
	defer c.Quit()

	_, err = c.Get("", "file1.dat", GetOptions{Length: 1})
	var ua *UnsupportedAuthError
	require.ErrorAs(t, err, &ua)
	require.Equal(t, "Digest", ua.Scheme)
}

func TestGet_RangeResetAfter416(t *testing.T) {
	t.Parallel()
	var sawRange, sawNoRange atomic.Bool
	host, port, _ := startMock(t, func(req *mockRequest) string {
		if req.header("Range") != "" {
			sawRange.Store(true)
			return "HTTP/1.1 416 Range Not Satisfiable\r\nContent-Length: 0\r\n\r\n"
		}
		sawNoRange.Store(true)
		return okResponse("whole file")
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	resp, err := c.Get("", "file1.dat", GetOptions{Offset: 9999, Length: int64(len("whole file"))})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)
	require.True(t, sawRange.Load(), "first attempt must carry Range")
	require.True(t, sawNoRange.Load(), "retry must start from offset 0")
}

func TestHead_LatchSkipsPreliminaryHead(t *testing.T) {
	t.Parallel()
	var headCount int64
	host, port, _ := startMock(t, func(req *mockRequest) string {
		if req.Method == "HEAD" {
			atomic.AddInt64(&headCount, 1)
			return "HTTP/1.1 501 Not Implemented\r\nContent-Length: 0\r\n\r\n"
		}
		return okResponse("data")
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	_, _, err = c.Head("", "file1.dat")
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 501, pe.Code)

	// content length unknown would normally trigger a HEAD; the latch
	// suppresses it
	resp, err := c.Get("", "file1.dat", GetOptions{Length: -1})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)
	require.EqualValues(t, 1, atomic.LoadInt64(&headCount))
}

func TestHead_SizeAndModTime(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		return "HTTP/1.1 200 OK\r\nContent-Length: 4096\r\nLast-Modified: Mon, 02 Jun 2025 10:20:30 GMT\r\n\r\n"
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	size, mtime, err := c.Head("/pub", "file1.dat")
	require.NoError(t, err)
	require.EqualValues(t, 4096, size)
	require.Equal(t, time.Date(2025, 6, 2, 10, 20, 30, 0, time.UTC), mtime)
}

func TestGet_ReconnectsAfterConnectionClose(t *testing.T) {
	t.Parallel()
	host, port, conns := startMock(t, func(req *mockRequest) string {
		body := "part"
		return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	for i := 0; i < 2; i++ {
		resp, err := c.Get("", "file1.dat", GetOptions{Length: 4})
		require.NoError(t, err)
		require.True(t, resp.Close)
		body, err := io.ReadAll(c)
		require.NoError(t, err)
		require.Equal(t, "part", string(body))
	}
	require.EqualValues(t, 2, atomic.LoadInt64(conns))
}

func TestPut_RoundTrip(t *testing.T) {
	t.Parallel()
	bodyCh := make(chan *mockRequest, 1)
	host, port, _ := startMock(t, func(req *mockRequest) string {
		bodyCh <- req
		return "HTTP/1.1 201 Created\r\nContent-Length: 0\r\n\r\n"
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	payload := "uploaded file contents"
	require.NoError(t, c.Put("/incoming", "file1.dat", int64(len(payload))))
	_, err = c.Write([]byte(payload))
	require.NoError(t, err)

	resp, err := c.PutResponse()
	require.NoError(t, err)
	require.Equal(t, 201, resp.Code)

	req := <-bodyCh
	require.Equal(t, "PUT", req.Method)
	require.Equal(t, "/incoming/file1.dat", req.Target)
	require.Equal(t, "overwrite=1", req.header("Control"))
	require.Equal(t, payload, req.Body)
}

func TestOptions_AllowBitset(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		require.Equal(t, "OPTIONS", req.Method)
		return "HTTP/1.1 200 OK\r\nAllow: GET, HEAD, PUT, DELETE\r\nContent-Length: 0\r\n\r\n"
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	allow, err := c.Options("")
	require.NoError(t, err)
	require.True(t, allow.Has(VerbGet|VerbHead|VerbPut|VerbDelete))
	require.False(t, allow.Has(VerbPost))
	require.Equal(t, "HEAD,GET,PUT,DELETE", allow.String())
}

func TestGet_ErrorBodyFlushedAndStatusLineRestored(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		if req.Method == "GET" {
			body := "<html>the file is not here</html>"
			return fmt.Sprintf("HTTP/1.1 404 Not Found\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
		}
		return "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"
	})

	c, err := Connect(host, port)
	require.NoError(t, err)
	defer c.Quit()

	_, err = c.Get("", "missing.dat", GetOptions{Length: 1})
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 404, pe.Code)
	require.Equal(t, "HTTP/1.1 404 Not Found", c.LastReply())

	// the error body must be off the socket: the next request on the
	// same connection parses cleanly
	require.NoError(t, c.Noop())
}

func TestProxy_AbsoluteFormRequestLine(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		require.Equal(t, "http://files.example.org:8080/pub/file1.dat", req.Target)
		require.Equal(t, "files.example.org:8080", req.header("Host"))
		return okResponse("via proxy")
	})

	c, err := Connect("files.example.org", 8080, WithProxy(host, port))
	require.NoError(t, err)
	defer c.Quit()

	resp, err := c.Get("/pub", "file1.dat", GetOptions{Length: int64(len("via proxy"))})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)
}

func TestGet_TimeoutClassified(t *testing.T) {
	t.Parallel()
	host, port, _ := startMock(t, func(req *mockRequest) string {
		time.Sleep(2 * time.Second)
		return ""
	})

	c, err := Connect(host, port, WithTimeout(150*time.Millisecond))
	require.NoError(t, err)
	defer c.Quit()

	start := time.Now()
	_, err = c.Get("", "file1.dat", GetOptions{Length: 1})
	require.Error(t, err)
	require.True(t, netio.IsTimeout(err), "expected a timeout, got %v", err)
	require.Less(t, time.Since(start), time.Second)
}
