package mailer

import (
	"errors"
	"io"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumoapp/billing-service/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func TestSMTPSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	sender := NewSMTPSender(Config{
		Host:   "mail.example.com",
		Port:   "587",
		Sender: "no-reply@example.com",
	}, testLogger()).(*smtpSender)
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := sender.Send("parent@example.com", "Consent required", "<p>Hi</p>", "Hi")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@example.com", gotFrom)
	assert.Equal(t, []string{"parent@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Consent required")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "text/plain; charset=UTF-8")
	assert.Contains(t, msg, "text/html; charset=UTF-8")
	assert.Contains(t, msg, "<p>Hi</p>")
}

func TestSMTPSender_SendError(t *testing.T) {
	sender := NewSMTPSender(Config{Host: "mail.example.com", Port: "587"}, testLogger()).(*smtpSender)
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := sender.Send("parent@example.com", "Subject", "<p>Hi</p>", "Hi")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to send mail"))
}

func TestBuildMessage_HeadersBeforeBody(t *testing.T) {
	msg, err := buildMessage("from@example.com", "to@example.com", "Hello", "<b>x</b>", "x")
	require.NoError(t, err)

	text := string(msg)
	headerEnd := strings.Index(text, "\r\n\r\n")
	require.Greater(t, headerEnd, 0)
	assert.Contains(t, text[:headerEnd], "From: from@example.com")
	assert.Contains(t, text[:headerEnd], "To: to@example.com")
	assert.Contains(t, text[:headerEnd], "MIME-Version: 1.0")
}
