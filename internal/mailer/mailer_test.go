package mailer

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"media_tracker/internal/lib/verification"
	"media_tracker/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	return ln, ln.Addr().(*net.TCPAddr).Port
}

// serveSMTP answers one session with the minimum a client needs and returns the DATA payload.
func serveSMTP(ln net.Listener) <-chan string {
	data := make(chan string, 1)

	go func() {
		defer close(data)

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 mail.test ESMTP")

		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}

			switch cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 mail.test")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				data <- string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("250 ok")
			}
		}
	}()

	return data
}

func TestSendMessage_Delivers(t *testing.T) {
	ln, port := listen(t)
	data := serveSMTP(ln)

	m := &Mailer{Host: "127.0.0.1", Port: port, Username: "noreply@example.com", Password: "pw"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.SendMessage(ctx, models.Message{Email: "a@x.com", Name: "Alice", Link: "http://localhost:3000?verify=T1"})
	require.NoError(t, err)

	body := <-data
	assert.Contains(t, body, "Subject: "+verificationSubject)
	assert.Contains(t, body, "Welcome Alice!")
}

func TestSendMessage_StalledServerIsDisconnected(t *testing.T) {
	ln, port := listen(t)

	dropped := make(chan struct{})
	go func() {
		defer close(dropped)

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_, _ = conn.Write([]byte("220 mail.test ESMTP\r\n"))
		// Never answer EHLO; returns once the client hangs up.
		_, _ = io.Copy(io.Discard, conn)
	}()

	m := &Mailer{Host: "127.0.0.1", Port: port, Username: "noreply@example.com", Password: "pw"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := m.SendMessage(ctx, models.Message{Email: "a@x.com"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("smtp connection still open after the deadline")
	}
}

func TestSendMessage_CancelDisconnects(t *testing.T) {
	ln, port := listen(t)

	dropped := make(chan struct{})
	go func() {
		defer close(dropped)

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_, _ = conn.Write([]byte("220 mail.test ESMTP\r\n"))
		_, _ = io.Copy(io.Discard, conn)
	}()

	m := &Mailer{Host: "127.0.0.1", Port: port, Username: "noreply@example.com", Password: "pw"}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := m.SendMessage(ctx, models.Message{Email: "a@x.com"})
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("smtp connection still open after cancel")
	}
}

func TestSendMessage_NotConfigured(t *testing.T) {
	m := &Mailer{Host: "smtp.example.com", Port: 587}

	err := m.SendMessage(context.Background(), models.Message{Email: "a@x.com"})
	assert.ErrorIs(t, err, verification.ErrNotConfigured)
}

func TestCompose(t *testing.T) {
	m := &Mailer{Host: "smtp.example.com", Port: 587, Username: "noreply@example.com", Password: "pw"}

	email, err := m.compose(models.Message{
		Email: "a@x.com",
		Name:  "<Alice>",
		Link:  "http://localhost:3000?verify=T1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com"}, email.GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.com"}, email.GetHeader("From"))
	assert.Equal(t, []string{verificationSubject}, email.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = email.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Welcome &lt;Alice&gt;!")
	assert.Contains(t, raw, "verify=3DT1")
}
