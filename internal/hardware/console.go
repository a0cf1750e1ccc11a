package hardware

import (
	"context"
	"io"
	"unicode/utf8"
)

// TokenLink is the character-oriented transport to the operator. A
// serialmux.SerialMux configured with bufio.ScanRunes and a CRLF line ending
// satisfies it.
type TokenLink interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
}

// Console is the operator channel over a TokenLink.
type Console struct {
	link   TokenLink
	subID  string
	tokens chan string
}

// NewConsole subscribes to link. Keystrokes typed before NewConsole are lost.
func NewConsole(link TokenLink) *Console {
	id, ch := link.Subscribe()
	return &Console{link: link, subID: id, tokens: ch}
}

// SendLine writes text to the operator, CRLF terminated unless text already
// ends with a newline.
func (c *Console) SendLine(text string) error {
	return c.link.SendCommand(text)
}

// RecvChar blocks for the next keystroke. It returns io.EOF once the link has
// been closed.
func (c *Console) RecvChar(ctx context.Context) (rune, error) {
	for {
		select {
		case tok, ok := <-c.tokens:
			if !ok {
				return 0, io.EOF
			}
			if r, _ := utf8.DecodeRuneInString(tok); r != utf8.RuneError {
				return r, nil
			}
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Close releases the subscription.
func (c *Console) Close() error {
	c.link.Unsubscribe(c.subID)
	return nil
}
