package ports

import (
	"context"
	"fmt"
)

// Tone selects how a reply is presented.
type Tone int

// Reply tones.
const (
	ToneInfo Tone = iota
	ToneSuccess
	ToneWarn
	ToneError
)

// Reply is a single human-readable status line.
type Reply struct {
	Tone Tone
	Text string
}

// Replier delivers progress and status messages to the requester.
type Replier interface {
	Reply(ctx context.Context, reply Reply)
}

// Replyf builds a reply with fmt-style text.
func Replyf(tone Tone, format string, args ...interface{}) Reply {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	return Reply{Tone: tone, Text: text}
}
