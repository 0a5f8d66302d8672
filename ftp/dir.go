package ftp

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ChangeDir issues CWD. 250 and 200 both mean success.
func (c *Client) ChangeDir(dir string) error {
	reply, err := c.command("CWD %s", dir)
	if err != nil {
		return err
	}
	if reply.Code != 250 && reply.Code != 200 {
		return &ProtocolError{Command: "CWD " + dir, Reply: reply.FirstLine(), Code: reply.Code}
	}
	return nil
}

// EnsureDir changes into dir, creating missing path segments when the
// server answers 550. Each created segment gets SITE CHMOD mode when
// mode is non-zero. The absolute or relative form of dir is preserved.
// It reports whether any segment was created.
func (c *Client) EnsureDir(dir string, mode os.FileMode) (created bool, err error) {
	reply, err := c.command("CWD %s", dir)
	if err != nil {
		return false, err
	}
	if reply.Code == 250 || reply.Code == 200 {
		return false, nil
	}
	if reply.Code != 550 {
		return false, &ProtocolError{Command: "CWD " + dir, Reply: reply.FirstLine(), Code: reply.Code}
	}

	// Walk segment by segment, creating what is missing.
	segments := strings.Split(dir, "/")
	if strings.HasPrefix(dir, "/") {
		segments[0] = "/"
	}
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		reply, err := c.command("CWD %s", seg)
		if err != nil {
			return created, err
		}
		if reply.Code == 250 || reply.Code == 200 {
			continue
		}
		if reply.Code != 550 {
			return created, &ProtocolError{Command: "CWD " + seg, Reply: reply.FirstLine(), Code: reply.Code}
		}

		if _, err := c.expectCode(257, "MKD %s", seg); err != nil {
			return created, err
		}
		created = true
		if mode != 0 {
			// Permission on the fresh directory; failure is not fatal.
			if _, err := c.command("SITE CHMOD %o %s", mode.Perm(), seg); err != nil {
				return created, err
			}
		}
		reply, err = c.command("CWD %s", seg)
		if err != nil {
			return created, err
		}
		if reply.Code != 250 && reply.Code != 200 {
			return created, &ProtocolError{Command: "CWD " + seg, Reply: reply.FirstLine(), Code: reply.Code}
		}
	}
	return created, nil
}

// MakeDir creates one directory.
func (c *Client) MakeDir(dir string) error {
	_, err := c.expectCode(257, "MKD %s", dir)
	return err
}

// RemoveDir removes one directory.
func (c *Client) RemoveDir(dir string) error {
	_, err := c.expectCode(250, "RMD %s", dir)
	return err
}

// Delete removes a file.
func (c *Client) Delete(path string) error {
	_, err := c.expectCode(250, "DELE %s", path)
	return err
}

// CurrentDir returns the server's working directory from PWD.
func (c *Client) CurrentDir() (string, error) {
	reply, err := c.expectCode(257, "PWD")
	if err != nil {
		return "", err
	}
	// 257 "<dir>" <commentary>; quotes inside are doubled.
	msg := reply.Message
	start := strings.IndexByte(msg, '"')
	if start < 0 {
		return strings.TrimSpace(msg), nil
	}
	end := strings.LastIndexByte(msg, '"')
	if end <= start {
		return strings.TrimSpace(msg), nil
	}
	return strings.ReplaceAll(msg[start+1:end], `""`, `"`), nil
}

// Size returns the size of a remote file via SIZE (RFC 3659).
func (c *Client) Size(path string) (int64, error) {
	reply, err := c.expectCode(213, "SIZE %s", path)
	if err != nil {
		return 0, err
	}
	var size int64
	if _, err := fmt.Sscanf(strings.TrimSpace(reply.Message), "%d", &size); err != nil {
		return 0, fmt.Errorf("ftp: malformed SIZE reply %q", reply.Message)
	}
	return size, nil
}

// ModTime returns the modification time of a remote file via MDTM.
func (c *Client) ModTime(path string) (time.Time, error) {
	reply, err := c.expectCode(213, "MDTM %s", path)
	if err != nil {
		return time.Time{}, err
	}
	stamp := strings.TrimSpace(reply.Message)
	// YYYYMMDDHHMMSS, optionally with fractional seconds.
	if i := strings.IndexByte(stamp, '.'); i > 0 {
		stamp = stamp[:i]
	}
	t, err := time.ParseInLocation("20060102150405", stamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("ftp: malformed MDTM reply %q", reply.Message)
	}
	return t, nil
}

// Chmod applies SITE CHMOD to a remote path.
func (c *Client) Chmod(path string, mode os.FileMode) error {
	_, err := c.expect2xx("SITE CHMOD %o %s", mode.Perm(), path)
	return err
}
