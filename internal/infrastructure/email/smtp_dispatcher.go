package email

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/application/reset"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// ErrPermanent marks failures a retry will not fix (bad address, auth).
var ErrPermanent = errors.New("smtp permanent failure")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

// SMTPDispatcher sends reset emails directly, for deployments without the
// email service.
type SMTPDispatcher struct {
	lg  zerolog.Logger
	cfg SMTPConfig
}

func NewSMTPDispatcher(cfg SMTPConfig, lg zerolog.Logger) (*SMTPDispatcher, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, domain.ErrMissingField("smtp_host")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, domain.ErrMissingField("smtp_from")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &SMTPDispatcher{
		lg:  lg.With().Str("component", "smtp_dispatcher").Logger(),
		cfg: cfg,
	}, nil
}

func (s *SMTPDispatcher) Dispatch(ctx context.Context, msg reset.EmailMessage) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return errors.Join(ErrPermanent, err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("to", msg.To).Msg("smtp send failed")
		if isAuthFailure(err.Error()) {
			return errors.Join(ErrPermanent, err)
		}
		return err
	}

	s.lg.Info().Str("to", msg.To).Msg("smtp send ok")
	return nil
}

func (s *SMTPDispatcher) buildMsg(msg reset.EmailMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, errors.Join(ErrPermanent, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, errors.Join(ErrPermanent, err)
	}
	m.Subject(msg.Subject)

	if msg.Text != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	} else {
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPDispatcher) clientOptions() []mail.Option {
	tlsPolicy := mail.TLSMandatory
	if s.cfg.Insecure {
		tlsPolicy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func isAuthFailure(msg string) bool {
	for _, x := range []string{"535", "5.7.8", "authentication", "Username and Password not accepted"} {
		if strings.Contains(msg, x) {
			return true
		}
	}
	return false
}
