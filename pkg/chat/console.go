package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// uploadPrefix lets a console session hand the bot a document reference,
// standing in for a real transport's file upload.
const uploadPrefix = "/upload "

// Console is a line-oriented Gateway/Source for local development. Every
// line read from in becomes a message from the configured user.
type Console struct {
	in       io.Reader
	out      io.Writer
	chatID   int64
	userID   int64
	username string

	mu sync.Mutex
}

// NewConsole builds a console transport bound to a single synthetic user.
func NewConsole(in io.Reader, out io.Writer, chatID, userID int64, username string) (*Console, error) {
	if in == nil || out == nil {
		return nil, fmt.Errorf("console requires both input and output streams")
	}
	return &Console{
		in:       in,
		out:      out,
		chatID:   chatID,
		userID:   userID,
		username: username,
	}, nil
}

// Updates streams stdin lines as chat messages until EOF or cancellation.
func (c *Console) Updates(ctx context.Context) (<-chan Message, error) {
	ch := make(chan Message)
	scanner := bufio.NewScanner(c.in)
	go func() {
		defer close(ch)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			msg := Message{
				ChatID:   c.chatID,
				UserID:   c.userID,
				Username: c.username,
				Text:     line,
			}
			if strings.HasPrefix(line, uploadPrefix) {
				ref := strings.TrimSpace(strings.TrimPrefix(line, uploadPrefix))
				msg.Text = ""
				msg.Document = &Document{FileRef: ref, FileName: ref}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- msg:
			}
		}
	}()
	return ch, nil
}

// SendText writes a reply line to the console.
func (c *Console) SendText(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%d] %s\n", chatID, text)
	return err
}

// SendDocument writes a document notice to the console.
func (c *Console) SendDocument(ctx context.Context, chatID int64, doc Document, caption string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caption != "" {
		_, err := fmt.Fprintf(c.out, "[%d] <document %s> %s\n", chatID, doc.FileRef, caption)
		return err
	}
	_, err := fmt.Fprintf(c.out, "[%d] <document %s>\n", chatID, doc.FileRef)
	return err
}
