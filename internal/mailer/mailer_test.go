package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/config"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	sent []*gomail.Message
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return nil
}

func TestNewWithoutHost(t *testing.T) {
	assert.Nil(t, New(config.SmtpConfig{}))
	assert.NotNil(t, New(config.SmtpConfig{Host: "smtp.example.com", Port: 587}))
}

func TestSend(t *testing.T) {
	capture := &captureSender{}
	m := NewWithSender("desk@example.com", capture)

	require.NoError(t, m.Send([]string{"ops@example.com"}, "Low rating", "score 1"))
	require.Len(t, capture.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, capture.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Low rating"}, capture.sent[0].GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := capture.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "score 1")

	assert.ErrorIs(t, m.Send(nil, "x", "y"), ErrNoRecipients)
}
