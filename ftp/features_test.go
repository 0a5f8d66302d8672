package ftp

import (
	"net/textproto"
	"testing"
	"time"
)

func TestFeatures_ParsesCapabilitySet(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("FEAT", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("211-Extensions supported:")
		_ = conn.PrintfLine(" MDTM")
		_ = conn.PrintfLine(" SIZE")
		_ = conn.PrintfLine(" UTF8")
		_ = conn.PrintfLine(" MLST modify*;perm;size*;type*;unique")
		_ = conn.PrintfLine("211 End")
	})
	c := dialMock(t, s)

	caps, err := c.Features()
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	if !caps.MDTM || !caps.Size || !caps.UTF8 || !caps.MLst {
		t.Errorf("capability flags wrong: %+v", caps)
	}
	if !caps.MLstModify || !caps.MLstSize || !caps.MLstType {
		t.Errorf("active MLST facts wrong: %+v", caps)
	}
	if caps.MLstPerm {
		t.Error("perm fact without '*' must stay inactive")
	}
}

func TestFeatures_UnsupportedYieldsEmptySet(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("FEAT", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("502 Command not implemented.")
	})
	c := dialMock(t, s)

	caps, err := c.Features()
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	if *caps != (Capabilities{}) {
		t.Errorf("expected empty capability set, got %+v", caps)
	}
}

func TestSize(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("SIZE", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("213 1048576")
	})
	c := dialMock(t, s)

	n, err := c.Size("file1.dat")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n != 1048576 {
		t.Errorf("got %d", n)
	}
}

func TestModTime(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("MDTM", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("213 20250102030405")
	})
	c := dialMock(t, s)

	mt, err := c.ModTime("file1.dat")
	if err != nil {
		t.Fatalf("ModTime: %v", err)
	}
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if !mt.Equal(want) {
		t.Errorf("got %v, want %v", mt, want)
	}
}

func TestCurrentDir(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	c := dialMock(t, s)

	dir, err := c.CurrentDir()
	if err != nil {
		t.Fatalf("CurrentDir: %v", err)
	}
	if dir != "/home/afd" {
		t.Errorf("got %q", dir)
	}
}

func TestEnsureDir_WalksAndCreates(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	cwdCalls := 0
	s.handle("CWD", func(conn *textproto.Conn, args string) {
		cwdCalls++
		if cwdCalls == 1 {
			// full path missing: trigger the segment walk
			_ = conn.PrintfLine("550 No such directory.")
			return
		}
		if cwdCalls == 2 {
			// first segment also missing
			_ = conn.PrintfLine("550 No such directory.")
			return
		}
		_ = conn.PrintfLine("250 Directory changed.")
	})
	c := dialMock(t, s)

	created, err := c.EnsureDir("archive/2025", 0755)
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if !created {
		t.Error("expected a directory to be created")
	}

	madeDir := false
	chmod := false
	for _, cmd := range s.commands() {
		if cmd == "MKD archive" {
			madeDir = true
		}
		if cmd == "SITE CHMOD 755 archive" {
			chmod = true
		}
	}
	if !madeDir {
		t.Errorf("MKD not sent: %v", s.commands())
	}
	if !chmod {
		t.Errorf("SITE CHMOD not sent: %v", s.commands())
	}
}
