package replier

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

func TestTerminal_Reply(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewTerminal(WithOutput(&buf))
	ctx := context.Background()

	r.Reply(ctx, ports.Replyf(ports.ToneInfo, "Installing %s@%s", "foo", "1.0.0"))
	r.Reply(ctx, ports.Replyf(ports.ToneSuccess, "Installed foo@1.0.0"))
	r.Reply(ctx, ports.Replyf(ports.ToneWarn, "Restored foo@0.9.0"))
	r.Reply(ctx, ports.Replyf(ports.ToneError, "Failed to install foo: boom"))

	assert.Equal(t,
		"• Installing foo@1.0.0\n"+
			"✓ Installed foo@1.0.0\n"+
			"! Restored foo@0.9.0\n"+
			"✗ Failed to install foo: boom\n",
		buf.String())
}

func TestTerminal_Quiet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewTerminal(WithOutput(&buf), WithQuiet(true))
	ctx := context.Background()

	r.Reply(ctx, ports.Replyf(ports.ToneInfo, "Refreshing catalogue"))
	r.Reply(ctx, ports.Replyf(ports.ToneError, "Catalogue refresh failed"))

	assert.Equal(t, "✗ Catalogue refresh failed\n", buf.String())
}

func TestTerminal_Color(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewTerminal(WithOutput(&buf), WithColor(true))
	r.Reply(context.Background(), ports.Replyf(ports.ToneSuccess, "done"))

	assert.Contains(t, buf.String(), "✓")
	assert.Contains(t, buf.String(), "done\n")
}
