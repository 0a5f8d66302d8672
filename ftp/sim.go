package ftp

import (
	"fmt"
	"strings"
)

// Simulation mode: commands are recorded but never hit the network, and
// the expected success replies are echoed back so the caller sees a
// normal dialogue.

func (c *Client) simWrite(line string) error {
	// Pipelined writes (fast move) carry several commands in one line.
	for _, cmd := range strings.Split(line, "\r\n") {
		verb := strings.ToUpper(cmd)
		if i := strings.IndexByte(verb, ' '); i > 0 {
			verb = verb[:i]
		}
		for _, code := range simCodes(verb) {
			c.simQueue = append(c.simQueue, &Reply{
				Code:  code,
				Lines: []string{fmt.Sprintf("%d Simulated reply", code)},
			})
		}
	}
	return nil
}

func (c *Client) simReply() (*Reply, error) {
	if len(c.simQueue) == 0 {
		return &Reply{Code: 200, Lines: []string{"200 Simulated reply"}}, nil
	}
	r := c.simQueue[0]
	c.simQueue = c.simQueue[1:]
	c.lastReply = r.FirstLine()
	r.Message = r.FirstLine()[4:]
	return r, nil
}

func simCodes(verb string) []int {
	switch verb {
	case "USER":
		return []int{331}
	case "PASS", "ACCT":
		return []int{230}
	case "CWD", "DELE", "RNTO", "RMD":
		return []int{250}
	case "RNFR", "REST":
		return []int{350}
	case "MKD", "PWD":
		return []int{257}
	case "QUIT":
		return []int{221}
	case "FEAT":
		return []int{211}
	case "STOR", "APPE", "RETR", "LIST", "NLST", "MLSD":
		// Transfer command acknowledgment plus the terminal reply read
		// after the data channel closes.
		return []int{150, 226}
	case "STAT":
		return []int{211}
	default:
		return []int{200}
	}
}
