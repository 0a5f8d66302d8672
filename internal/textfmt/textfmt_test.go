package textfmt

import (
	"bytes"
	"testing"
)

func TestCRLFWriter_UpgradesBareLF(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := &CRLFWriter{W: &buf}

	if _, err := w.Write([]byte("one\ntwo\r\nthree\n")); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "one\r\ntwo\r\nthree\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCRLFWriter_CRLFSplitAcrossWrites(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := &CRLFWriter{W: &buf}

	// the CR arrives in one block, the LF in the next; no doubling
	for _, block := range []string{"a\r", "\nb\n", "\n"} {
		if _, err := w.Write([]byte(block)); err != nil {
			t.Fatal(err)
		}
	}
	if got := buf.String(); got != "a\r\nb\r\n\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestCRLFWriter_EmptyWrite(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := &CRLFWriter{W: &buf}
	n, err := w.Write(nil)
	if err != nil || n != 0 {
		t.Errorf("got n=%d err=%v", n, err)
	}
}
