package mailer

import (
	"errors"
	"testing"

	mail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/pkg/config"
)

type recordingSender struct {
	sent []*mail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*mail.Message) error {
	r.sent = append(r.sent, m...)
	return r.err
}

func TestNewDisabledWithoutHost(t *testing.T) {
	m := New(config.MailerConfig{From: "jury@univ.test"})
	assert.Nil(t, m)
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send(Message{To: []string{"a@univ.test"}}))
}

func TestNewConfigured(t *testing.T) {
	m := New(config.MailerConfig{Host: "smtp.univ.test", From: "jury@univ.test"})
	require.NotNil(t, m)
	assert.True(t, m.Enabled())
}

func TestSendUsesDialer(t *testing.T) {
	rec := &recordingSender{}
	m := &Mailer{from: "jury@univ.test", dialer: rec}

	require.NoError(t, m.Send(Message{To: []string{"supervisor@univ.test"}, Subject: "Corrections requested", HTML: "<p>fix</p>"}))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, []string{"supervisor@univ.test"}, rec.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Corrections requested"}, rec.sent[0].GetHeader("Subject"))

	require.NoError(t, m.Send(Message{Subject: "nobody"}))
	assert.Len(t, rec.sent, 1)
}

func TestSendWrapsError(t *testing.T) {
	m := &Mailer{from: "jury@univ.test", dialer: &recordingSender{err: errors.New("relay down")}}
	err := m.Send(Message{To: []string{"x@univ.test"}, Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
}
