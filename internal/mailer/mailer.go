package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"

	"media_tracker/internal/lib/verification"
	"media_tracker/internal/models"
)

const verificationSubject = "Verify Your Email - Media Tracker"

var verificationBody = template.Must(template.New("verification").Parse(`<html>
  <body>
    <h2>Welcome {{.Name}}!</h2>
    <p>Click below to verify your email:</p>
    <a href="{{.Link}}">Verify Email</a>
  </body>
</html>
`))

// Mailer delivers messages over SMTP. Port 465 implies implicit TLS, any other port
// uses STARTTLS when the server offers it.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SendMessage delivers msg within ctx. Once ctx is done any pending SMTP read or
// write fails and the connection is closed.
func (m *Mailer) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "mailer.SendMessage"

	if m.Username == "" || m.Password == "" {
		return verification.ErrNotConfigured
	}

	email, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.deliver(ctx, email); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mailer) deliver(ctx context.Context, email *gomail.Message) error {
	s, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer s.abort()

	if err := gomail.Send(s, email); err != nil {
		return err
	}

	return s.client.Quit()
}

func (m *Mailer) dial(ctx context.Context) (*session, error) {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})

	s := &session{conn: conn, stop: stop}

	tlsConfig := &tls.Config{ServerName: m.Host}

	var wire net.Conn = conn
	if m.Port == 465 {
		wire = tls.Client(conn, tlsConfig)
	}

	s.client, err = smtp.NewClient(wire, m.Host)
	if err != nil {
		s.abort()
		return nil, err
	}

	if m.Port != 465 {
		if ok, _ := s.client.Extension("STARTTLS"); ok {
			if err := s.client.StartTLS(tlsConfig); err != nil {
				s.abort()
				return nil, err
			}
		}
	}

	if ok, _ := s.client.Extension("AUTH"); ok {
		if err := s.client.Auth(smtp.PlainAuth("", m.Username, m.Password, m.Host)); err != nil {
			s.abort()
			return nil, err
		}
	}

	return s, nil
}

func (m *Mailer) compose(msg models.Message) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := verificationBody.Execute(&body, msg); err != nil {
		return nil, err
	}

	email := gomail.NewMessage()
	email.SetHeader("From", m.Username)
	email.SetHeader("To", msg.Email)
	email.SetHeader("Subject", verificationSubject)
	email.SetBody("text/html", body.String())

	return email, nil
}

// session is a gomail.Sender over a single SMTP connection.
type session struct {
	conn   net.Conn
	client *smtp.Client
	stop   func() bool
}

func (s *session) Send(from string, to []string, msg io.WriterTo) error {
	if err := s.client.Mail(from); err != nil {
		return err
	}

	for _, addr := range to {
		if err := s.client.Rcpt(addr); err != nil {
			return err
		}
	}

	w, err := s.client.Data()
	if err != nil {
		return err
	}

	if _, err := msg.WriteTo(w); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// abort drops the connection without a QUIT exchange. Safe after Quit.
func (s *session) abort() {
	s.stop()
	_ = s.conn.Close()
}
