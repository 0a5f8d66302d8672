package smtp

import (
	"encoding/base64"
	"fmt"

	"github.com/emersion/go-sasl"
)

// AuthType selects the SASL mechanism.
type AuthType int

const (
	// AuthLogin is the LOGIN mechanism: the server challenges for
	// username and password separately.
	AuthLogin AuthType = iota

	// AuthPlain sends identity, user and password in one response.
	AuthPlain
)

// Auth authenticates with AUTH LOGIN or AUTH PLAIN. The base64
// credential responses never reach the trace sink or the debug log.
func (c *Client) Auth(authType AuthType, user, pass string) error {
	var sc sasl.Client
	var name string
	switch authType {
	case AuthLogin:
		sc = sasl.NewLoginClient(user, pass)
		name = "LOGIN"
	case AuthPlain:
		sc = sasl.NewPlainClient("", user, pass)
		name = "PLAIN"
	default:
		return fmt.Errorf("smtp: unknown auth type %d", authType)
	}

	_, initial, err := sc.Start()
	if err != nil {
		return err
	}

	reply, err := c.command("AUTH %s", name)
	if err != nil {
		return err
	}
	for reply.Code == 334 {
		var resp []byte
		if initial != nil {
			// first challenge consumes the initial response
			resp, initial = initial, nil
		} else {
			challenge, err := base64.StdEncoding.DecodeString(reply.Message)
			if err != nil {
				return fmt.Errorf("smtp: undecodable challenge %q: %w", reply.Message, err)
			}
			if resp, err = sc.Next(challenge); err != nil {
				// tell the server the exchange is abandoned
				_, _ = c.command("*")
				return err
			}
		}

		if err := c.writeCommand(true, "%s", base64.StdEncoding.EncodeToString(resp)); err != nil {
			return err
		}
		if reply, err = c.readReply(); err != nil {
			return err
		}
	}

	if reply.Code != 235 {
		return &ProtocolError{Command: "AUTH " + name, Reply: reply.FirstLine(), Code: reply.Code}
	}
	c.logger.Debug("authenticated", "mechanism", name)
	return nil
}
