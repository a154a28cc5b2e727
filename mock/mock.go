package mock

import (
	"github.com/stevegt/azchat/client"
)

// Result is one scripted outcome of a CompleteChat call.
type Result struct {
	Reply client.Reply
	Err   error
}

// Client is a mock completion gateway for testing.
// It implements the ChatClient interface and returns pre-configured
// results in order.  Tests queue results with Reply, Empty, and Fail.
type Client struct {
	Results []Result
	// Calls records a copy of the transcript passed to each call.
	Calls [][]client.ChatMsg
	// Params records the parameters passed to each call.
	Params []client.Params
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{}
}

// Reply queues a successful reply with the given text.
func (c *Client) Reply(txt string) *Client {
	c.Results = append(c.Results, Result{Reply: client.NewReply(txt)})
	return c
}

// Empty queues a successful call that carries no reply text.
func (c *Client) Empty() *Client {
	c.Results = append(c.Results, Result{Reply: client.EmptyReply})
	return c
}

// Fail queues a failed call.
func (c *Client) Fail(err error) *Client {
	c.Results = append(c.Results, Result{Err: err})
	return c
}

// CompleteChat returns the next queued result.  If nothing is queued
// it returns a default reply.
// This method implements the ChatClient interface.
func (c *Client) CompleteChat(msgs []client.ChatMsg, params client.Params) (client.Reply, error) {
	cp := make([]client.ChatMsg, len(msgs))
	copy(cp, msgs)
	c.Calls = append(c.Calls, cp)
	c.Params = append(c.Params, params)
	if len(c.Results) == 0 {
		return client.NewReply("default mock response"), nil
	}
	res := c.Results[0]
	c.Results = c.Results[1:]
	return res.Reply, res.Err
}

var _ client.ChatClient = (*Client)(nil)
