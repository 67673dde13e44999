package aaa

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	gomail "gopkg.in/gomail.v2"
)

// SMTP connection protocols. Legacy aliases from older deployments are
// accepted by ParseSMTPURL and normalized: smtp means plain, ssl means tls.
const (
	ProtoPlain    = "plain"
	ProtoSTARTTLS = "starttls"
	ProtoTLS      = "tls"
)

// DefaultDrainTimeout bounds how long Drain waits per call when the caller
// passes no timeout.
const DefaultDrainTimeout = 5 * time.Second

// SMTPConfig is a parsed connection descriptor.
type SMTPConfig struct {
	Proto    string
	Host     string
	Port     int
	Username string
	Password string
}

// ParseSMTPURL parses a connection descriptor of the form
// proto://[user[:pass]@]host[:port]. The protocol defaults to plain and the
// port to 25.
func ParseSMTPURL(raw string) (SMTPConfig, error) {
	if raw == "" {
		return SMTPConfig{Proto: ProtoPlain, Port: 25}, nil
	}
	if !strings.Contains(raw, "://") {
		raw = ProtoPlain + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return SMTPConfig{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed SMTP URL")
	}

	conf := SMTPConfig{Host: u.Hostname(), Port: 25}
	switch u.Scheme {
	case ProtoPlain, "smtp":
		conf.Proto = ProtoPlain
	case ProtoSTARTTLS:
		conf.Proto = ProtoSTARTTLS
	case ProtoTLS, "ssl":
		conf.Proto = ProtoTLS
	default:
		return SMTPConfig{}, goerrors.New("unsupported SMTP protocol: "+u.Scheme, goerrors.CategoryBadInput)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return SMTPConfig{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed SMTP port")
		}
		conf.Port = port
	}

	if u.User != nil {
		conf.Username = u.User.Username()
		conf.Password, _ = u.User.Password()
	}
	return conf, nil
}

// Dialer delivers assembled messages. *gomail.Dialer satisfies it; tests
// substitute a fake.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var _ Notifier = &Mailer{}

// Mailer delivers notifications over SMTP. Dispatch enqueues the message on
// a bounded worker pool and returns immediately; delivery failures are
// logged and never retried. There is no cancellation for in-flight sends;
// Drain just stops waiting when its timeout elapses.
type Mailer struct {
	sender string
	conf   SMTPConfig
	dialer Dialer
	logger Logger
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewMailer returns a mailer sending from the given address through the
// endpoint described by smtpURL.
func NewMailer(sender, smtpURL string) (*Mailer, error) {
	conf, err := ParseSMTPURL(smtpURL)
	if err != nil {
		return nil, err
	}

	m := &Mailer{
		sender: sender,
		conf:   conf,
		logger: defLogger{},
		sem:    make(chan struct{}, 4),
	}
	m.dialer = conf.newDialer()
	return m, nil
}

// WithLogger sets the logger.
func (m *Mailer) WithLogger(logger Logger) *Mailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithDialer replaces the SMTP dialer, mainly for tests.
func (m *Mailer) WithDialer(dialer Dialer) *Mailer {
	if dialer != nil {
		m.dialer = dialer
	}
	return m
}

// WithMaxInFlight bounds the number of concurrent deliveries.
func (m *Mailer) WithMaxInFlight(n int) *Mailer {
	if n > 0 {
		m.sem = make(chan struct{}, n)
	}
	return m
}

// Dispatch enqueues a message for asynchronous delivery. It fails
// synchronously with ErrNotifierNotConfigured when no sender or endpoint is
// configured; after that, delivery is best-effort.
func (m *Mailer) Dispatch(ctx context.Context, recipient, subject, body string) error {
	if m.sender == "" || m.conf.Host == "" {
		return ErrNotifierNotConfigured
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	m.logger.Debug("sending email", "host", m.conf.Host, "recipient", recipient)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sem <- struct{}{}
		defer func() { <-m.sem }()

		if err := m.dialer.DialAndSend(msg); err != nil {
			m.logger.Error("error sending email", "recipient", recipient, "error", err)
			return
		}
		m.logger.Info("email sent", "recipient", recipient)
	}()

	return nil
}

// Drain waits for in-flight deliveries to finish, up to the given timeout
// (DefaultDrainTimeout when zero). Timing out does not kill the workers; it
// only stops waiting.
func (m *Mailer) Drain(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return goerrors.New("timed out waiting for in-flight deliveries", goerrors.CategoryOperation)
	}
}

func (c SMTPConfig) newDialer() *gomail.Dialer {
	d := gomail.NewDialer(c.Host, c.Port, c.Username, c.Password)
	switch c.Proto {
	case ProtoTLS:
		d.SSL = true
	case ProtoSTARTTLS:
		// gomail negotiates STARTTLS when the server advertises it.
		d.SSL = false
	}
	return d
}
