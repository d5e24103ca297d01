// Package cli implements an interactive terminal channel, mainly for
// local testing without a chat platform.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
	"github.com/nextlevelbuilder/hiveclaw/internal/channels"
)

const chatID = "direct"

// Channel reads lines from stdin and prints replies to stdout.
type Channel struct {
	*channels.BaseChannel
	in  io.Reader
	out io.Writer
}

// New creates the CLI channel.
func New(msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("cli", msgBus),
		in:          os.Stdin,
		out:         os.Stdout,
	}
}

// Start spawns the read loop.
func (c *Channel) Start(ctx context.Context) error {
	c.SetRunning(true)
	go c.readLoop(ctx)
	fmt.Fprintln(c.out, "Interactive mode. Type a message, Ctrl-D to exit.")
	return nil
}

// Stop marks the channel stopped. The read loop exits on ctx or EOF.
func (c *Channel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return nil
}

// Send prints the agent's reply.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, err := fmt.Fprintf(c.out, "\n%s\n> ", msg.Content)
	return err
}

func (c *Channel) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprint(c.out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil || !c.IsRunning() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(c.out, "> ")
			continue
		}
		c.HandleMessage("user", chatID, line, nil)
	}
}

var _ channels.Channel = (*Channel)(nil)
