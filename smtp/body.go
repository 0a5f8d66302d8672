package smtp

import (
	"fmt"

	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/trace"
)

func classifyWrite(err error) error { return netio.Classify("write body", err) }

// Write streams a block of message body: bare LF becomes CRLF, and a
// dot at the start of a line is doubled per RFC 5321. The line-start
// state carries across calls, so blocks may split anywhere.
//
// The returned count is the number of input bytes consumed.
func (c *Client) Write(p []byte) (int, error) {
	return c.writeBody(p, nil)
}

// WriteISO8859 is Write with the 7-bit glyph translation applied first,
// for peers that expect ISO-8859-1 instead of code page 437.
func (c *Client) WriteISO8859(p []byte) (int, error) {
	return c.writeBody(p, cp437ToISO8859)
}

func (c *Client) writeBody(p []byte, translate func(byte) byte) (int, error) {
	if !c.inData {
		return 0, fmt.Errorf("smtp: body write outside DATA")
	}

	// worst case doubles every byte
	out := make([]byte, 0, len(p)*2)
	last := c.lastByte
	for _, b := range p {
		if translate != nil {
			b = translate(b)
		}
		switch b {
		case '\n':
			if last != '\r' {
				out = append(out, '\r')
			}
			out = append(out, '\n')
		case '.':
			if last == '\n' {
				out = append(out, '.', '.')
			} else {
				out = append(out, '.')
			}
		default:
			out = append(out, b)
		}
		last = b
	}
	c.lastByte = last

	if !c.simulated {
		if _, err := c.conn.Write(out); err != nil {
			return 0, classifyWrite(err)
		}
	}
	c.sink.Trace(trace.BulkWrite, len(out), "")
	return len(p), nil
}

// cp437ToISO8859 maps the code page 437 glyphs that have an ISO-8859-1
// equivalent; everything else passes through.
func cp437ToISO8859(b byte) byte {
	switch b {
	case 21:
		return 0xA7 // §
	case 129:
		return 0xFC // ü
	case 130:
		return 0xE9 // é
	case 131:
		return 0xE2 // â
	case 132:
		return 0xE4 // ä
	case 140:
		return 0xEE // î
	case 142:
		return 0xC4 // Ä
	case 147:
		return 0xF4 // ô
	case 148:
		return 0xF6 // ö
	case 153:
		return 0xD6 // Ö
	case 154:
		return 0xDC // Ü
	case 160:
		return 0xE1 // á
	case 161:
		return 0xED // í
	case 163:
		return 0xFA // ú
	case 225:
		return 0xDF // ß
	case 246:
		return 0xF7 // ÷
	case 248:
		return 0xB0 // °
	}
	return b
}
