package ftp

import (
	"net/textproto"
	"testing"
)

func TestMove_Simple(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	c := dialMock(t, s)

	created, err := c.Move("in/a.tmp", "in/a.dat", MoveOptions{})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if created {
		t.Error("no directory should have been created")
	}

	cmds := s.commands()
	if cmds[0] != "RNFR in/a.tmp" || cmds[1] != "RNTO in/a.dat" {
		t.Errorf("unexpected sequence %v", cmds)
	}
}

func TestMove_FastPipelinesBothCommands(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	c := dialMock(t, s)

	if _, err := c.Move("a.tmp", "a.dat", MoveOptions{Fast: true}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	// The channel stays aligned after the pipelined pair.
	if err := c.Noop(); err != nil {
		t.Fatalf("Noop after fast move: %v", err)
	}
}

func TestMove_FastConsumesBothRepliesOnFailure(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("RNFR", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("550 No such file.")
	})
	s.handle("RNTO", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("503 Bad sequence of commands.")
	})
	c := dialMock(t, s)

	_, err := c.Move("missing.tmp", "missing.dat", MoveOptions{Fast: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	// Both replies must have been consumed even though RNFR failed,
	// otherwise this NOOP reads the stale 503.
	if err := c.Noop(); err != nil {
		t.Fatalf("channel misaligned after failed fast move: %v", err)
	}
}

func TestMove_TargetInTheWayIsDeleted(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	attempt := 0
	s.handle("RNTO", func(conn *textproto.Conn, args string) {
		attempt++
		if attempt == 1 {
			_ = conn.PrintfLine("553 Target exists.")
			return
		}
		_ = conn.PrintfLine("250 Rename successful.")
	})
	c := dialMock(t, s)

	if _, err := c.Move("a.tmp", "a.dat", MoveOptions{}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	deleted := false
	for _, cmd := range s.commands() {
		if cmd == "DELE a.dat" {
			deleted = true
		}
	}
	if !deleted {
		t.Error("existing target was not deleted before the rename retry")
	}
}
