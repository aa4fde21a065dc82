package chat

import "context"

// Document is a file attached to an inbound message or sent as a reply.
type Document struct {
	FileRef  string
	FileName string
}

// Message is one inbound chat update.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
	Document *Document
}

// Gateway is the outbound side of the chat transport.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, doc Document, caption string) error
}

// Source is the inbound side of the chat transport.
type Source interface {
	Updates(ctx context.Context) (<-chan Message, error)
}
