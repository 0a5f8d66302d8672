package ftp

import (
	"os"
	"path"
)

// MoveOptions tunes Move's recovery behaviour.
type MoveOptions struct {
	// Fast pipelines RNFR and RNTO in a single write, for servers that
	// expect the chained form.
	Fast bool

	// Create makes the parent directory of the target when RNTO fails
	// with 550.
	Create bool

	// DirMode is applied to directories Create makes (0 = server default).
	DirMode os.FileMode
}

// Move renames a remote file. If RNTO is refused, the target is deleted
// and the rename retried once; if it is refused with 550 and
// opts.Create is set, the target's parent directory is created first.
// It reports whether a directory was created along the way.
func (c *Client) Move(from, to string, opts MoveOptions) (created bool, err error) {
	rnfr, rnto, err := c.renamePair(from, to, opts.Fast)
	if err != nil {
		return false, err
	}
	if rnfr.Code != 350 {
		return false, &ProtocolError{Command: "RNFR " + from, Reply: rnfr.FirstLine(), Code: rnfr.Code}
	}
	if rnto.Code == 250 {
		return false, nil
	}

	if rnto.Code == 550 && opts.Create {
		created, err = c.createTargetParent(to, opts.DirMode)
		if err != nil {
			return created, err
		}
	} else {
		// Target may be in the way; remove it and try again.
		if err := c.Delete(to); err != nil {
			return false, &ProtocolError{Command: "RNTO " + to, Reply: rnto.FirstLine(), Code: rnto.Code}
		}
	}

	rnfr, rnto, err = c.renamePair(from, to, opts.Fast)
	if err != nil {
		return created, err
	}
	if rnfr.Code != 350 {
		return created, &ProtocolError{Command: "RNFR " + from, Reply: rnfr.FirstLine(), Code: rnfr.Code}
	}
	if rnto.Code != 250 {
		return created, &ProtocolError{Command: "RNTO " + to, Reply: rnto.FirstLine(), Code: rnto.Code}
	}
	return created, nil
}

// renamePair performs one RNFR/RNTO exchange. In fast mode both
// commands go out in a single write; both replies are always consumed,
// even when the first one fails, to keep the channel aligned.
func (c *Client) renamePair(from, to string, fast bool) (rnfr, rnto *Reply, err error) {
	if !fast {
		rnfr, err = c.command("RNFR %s", from)
		if err != nil {
			return nil, nil, err
		}
		if rnfr.Code != 350 {
			return rnfr, &Reply{}, nil
		}
		rnto, err = c.command("RNTO %s", to)
		if err != nil {
			return rnfr, nil, err
		}
		return rnfr, rnto, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeCommand("RNFR %s\r\nRNTO %s", from, to); err != nil {
		return nil, nil, err
	}
	rnfr, err = c.readReply()
	if err != nil {
		return nil, nil, err
	}
	rnto, err = c.readReply()
	if err != nil {
		return rnfr, nil, err
	}
	return rnfr, rnto, nil
}

// createTargetParent ensures the parent directory of target exists,
// then returns to the directory the session was in.
func (c *Client) createTargetParent(target string, mode os.FileMode) (bool, error) {
	parent := path.Dir(target)
	if parent == "." || parent == "/" {
		return false, nil
	}
	cwd, err := c.CurrentDir()
	if err != nil {
		return false, err
	}
	created, err := c.EnsureDir(parent, mode)
	if err != nil {
		return created, err
	}
	if err := c.ChangeDir(cwd); err != nil {
		return created, err
	}
	return created, nil
}
