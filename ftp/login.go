package ftp

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// userRetries bounds the workaround for servers that answer USER
	// with a spurious 430 while the previous session drains.
	userRetries    = 10
	userRetryPause = 700 * time.Millisecond
)

// Login authenticates the session.
//
// USER replies: 230 login complete, 331 password required, 332 account
// required. A spurious 430 ("already logged in") is retried up to ten
// times with a 700 ms pause. A 331 carrying "Can't change to another
// user" means the session is already usable and is treated as success.
//
// PASS replies 230, 202, 331 and 332 all count as success.
func (c *Client) Login(user, pass string) error {
	reply, err := c.userCommand(user)
	if err != nil {
		return err
	}

	switch reply.Code {
	case 230:
		return nil
	case 331:
		if strings.Contains(reply.Message, "Can't change to another user") {
			c.logger.Debug("server kept previous login", "reply", reply.FirstLine())
			return nil
		}
	case 332:
		return ErrAccountRequired
	default:
		return &ProtocolError{Command: "USER " + user, Reply: reply.FirstLine(), Code: reply.Code}
	}

	passReply, err := c.command("PASS %s", pass)
	if err != nil {
		return err
	}
	switch passReply.Code {
	case 230, 202, 331, 332:
		return nil
	default:
		return &ProtocolError{Command: "PASS xxx", Reply: passReply.FirstLine(), Code: passReply.Code}
	}
}

// Account sends ACCT for servers that demand one after USER or PASS.
func (c *Client) Account(account string) error {
	reply, err := c.command("ACCT %s", account)
	if err != nil {
		return err
	}
	switch reply.Code {
	case 230, 202:
		return nil
	default:
		return &ProtocolError{Command: "ACCT xxx", Reply: reply.FirstLine(), Code: reply.Code}
	}
}

// userCommand issues USER with the bounded 430 retry.
func (c *Client) userCommand(user string) (*Reply, error) {
	var reply *Reply
	attempt := func() error {
		r, err := c.command("USER %s", user)
		if err != nil {
			return backoff.Permanent(err)
		}
		reply = r
		if r.Code == 430 {
			c.logger.Debug("server still logged in, retrying USER", "reply", r.FirstLine())
			return &ProtocolError{Command: "USER " + user, Reply: r.FirstLine(), Code: 430}
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(userRetryPause), userRetries)
	if err := backoff.Retry(attempt, policy); err != nil {
		if reply != nil && reply.Code == 430 {
			return nil, &ProtocolError{Command: "USER " + user, Reply: reply.FirstLine(), Code: 430}
		}
		return nil, err
	}
	return reply, nil
}
