package email

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	to, subject, html, text string
}

func (c *captureSender) Send(_ context.Context, to, subject, htmlBody, textBody string) error {
	c.to, c.subject, c.html, c.text = to, subject, htmlBody, textBody
	return nil
}

func TestMailer_SendVerification(t *testing.T) {
	cs := &captureSender{}
	m, err := NewMailer(cs, "https://jigzi.org/")
	require.NoError(t, err)

	require.NoError(t, m.SendVerification(context.Background(), "ada@example.com", "Ada <script>", "tok+en", "7 days"))
	assert.Equal(t, "ada@example.com", cs.to)
	assert.Equal(t, "Verify your email", cs.subject)
	assert.Contains(t, cs.text, "https://jigzi.org/user/verify-email?token=tok%2Ben")
	assert.Contains(t, cs.text, "7 days")
	assert.Contains(t, cs.html, "Ada &lt;script&gt;")
	assert.NotContains(t, cs.html, "<script>")
}

func TestBuildMessage_Alternative(t *testing.T) {
	msg := buildMessage("no-reply@jigzi.org", "ada@example.com", "Hi", "<p>hi</p>", "hi")
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.Contains(out, "multipart/alternative"))
	assert.Contains(t, out, "Subject: Hi")
}
