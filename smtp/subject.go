package smtp

import "mime"

// WriteSubject writes the Subject header into the message body. A
// plain-ASCII subject goes out verbatim; anything else is wrapped in
// an RFC 2047 base64 encoded-word. An empty charset defaults to utf-8.
func (c *Client) WriteSubject(subject, charset string) error {
	if charset == "" {
		charset = "utf-8"
	}
	_, err := c.Write([]byte("Subject: " + mime.BEncoding.Encode(charset, subject) + "\n"))
	return err
}

// WriteHeader writes one arbitrary message header.
func (c *Client) WriteHeader(name, value string) error {
	_, err := c.Write([]byte(name + ": " + value + "\n"))
	return err
}
