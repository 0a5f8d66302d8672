package smtp

import "strings"

// simWrite fabricates the reply a cooperative server would give, so a
// simulated session walks the same state machine as a real one.
func (c *Client) simWrite(line string) error {
	verb := line
	if i := strings.IndexByte(verb, ' '); i >= 0 {
		verb = verb[:i]
	}

	var reply *Reply
	switch strings.ToUpper(verb) {
	case "DATA":
		reply = &Reply{Code: 354, Lines: []string{"354 End data with <CR><LF>.<CR><LF>"}}
	case "QUIT":
		reply = &Reply{Code: 221, Lines: []string{"221 Bye"}}
	case "STARTTLS":
		reply = &Reply{Code: 220, Lines: []string{"220 Ready to start TLS"}}
	case "AUTH":
		reply = &Reply{Code: 235, Lines: []string{"235 Authentication successful"}}
	default:
		reply = &Reply{Code: 250, Lines: []string{"250 OK"}}
	}
	c.simQueue = append(c.simQueue, reply)
	return nil
}

func (c *Client) simReply() (*Reply, error) {
	if len(c.simQueue) == 0 {
		reply := &Reply{Code: 250, Lines: []string{"250 OK"}}
		c.lastReply = reply.FirstLine()
		return reply, nil
	}
	reply := c.simQueue[0]
	c.simQueue = c.simQueue[1:]
	c.lastReply = reply.FirstLine()
	return reply, nil
}
