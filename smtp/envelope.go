package smtp

// Mail opens a transaction for the given originator.
func (c *Client) Mail(from string) error {
	_, err := c.expectCode(250, "MAIL FROM:<%s>", from)
	return err
}

// Rcpt adds a recipient. 251 (user not local, will forward) counts as
// acceptance.
func (c *Client) Rcpt(to string) error {
	reply, err := c.command("RCPT TO:<%s>", to)
	if err != nil {
		return err
	}
	if reply.Code != 250 && reply.Code != 251 {
		return &ProtocolError{Command: "RCPT TO:<" + to + ">", Reply: reply.FirstLine(), Code: reply.Code}
	}
	return nil
}

// Data starts the message body. On 354 the body writer is armed: the
// line-start state is reset so a dot at the very beginning of the body
// is stuffed correctly.
func (c *Client) Data() error {
	if _, err := c.expectCode(354, "DATA"); err != nil {
		return err
	}
	c.inData = true
	c.lastByte = '\n'
	return nil
}

// Close ends the message body with the CRLF.CRLF terminator and waits
// for the 250 acceptance. The session stays open for the next
// transaction.
func (c *Client) Close() error {
	if !c.inData {
		return nil
	}
	c.inData = false

	if !c.simulated {
		if _, err := c.conn.Write([]byte("\r\n.\r\n")); err != nil {
			return classifyWrite(err)
		}
	} else {
		c.simQueue = append(c.simQueue, &Reply{Code: 250, Lines: []string{"250 OK message accepted"}})
	}

	reply, err := c.readReply()
	if err != nil {
		return err
	}
	if reply.Code != 250 {
		return &ProtocolError{Command: "DATA terminator", Reply: reply.FirstLine(), Code: reply.Code}
	}
	c.logger.Debug("message accepted", "reply", reply.FirstLine())
	return nil
}
