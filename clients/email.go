package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/maastricht-university/upsot-pipeline/config"
)

// EmailRequest is one delivery. Attachment is the primary file; Extra
// holds optional additional attachments.
type EmailRequest struct {
	To         string
	Subject    string
	Body       string
	Attachment string
	Extra      []string
}

// Delivery is the metadata of a successful send.
type Delivery struct {
	Timestamp   time.Time `json:"timestamp"`
	Recipient   string    `json:"recipient"`
	Simulated   bool      `json:"simulated"`
	Attachments []string  `json:"attachments"`
}

// Mailer delivers over SMTP, or only logs the delivery when simulating.
type Mailer struct {
	cfg      config.SMTP
	simulate bool
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewMailer(cfg config.SMTP, simulate bool, log logrus.FieldLogger) *Mailer {
	return &Mailer{cfg: cfg, simulate: simulate, log: log, now: time.Now}
}

func (m *Mailer) Send(ctx context.Context, req EmailRequest) (Delivery, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return Delivery{}, fmt.Errorf("email: sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(req.To); err != nil {
		return Delivery{}, fmt.Errorf("email: recipient %q: %w", req.To, err)
	}
	msg.Subject(req.Subject)
	msg.SetBodyString(mail.TypeTextPlain, req.Body)

	files := append([]string{req.Attachment}, req.Extra...)
	names := make([]string, 0, len(files))
	for _, p := range files {
		if _, err := os.Stat(p); err != nil {
			return Delivery{}, fmt.Errorf("email: attachment: %w", err)
		}
		msg.AttachFile(p)
		names = append(names, filepath.Base(p))
	}

	log := m.log.WithFields(logrus.Fields{"recipient": req.To, "attachments": len(names)})
	if m.simulate {
		log.Info("email delivery simulated")
		return Delivery{Timestamp: m.now(), Recipient: req.To, Simulated: true, Attachments: names}, nil
	}

	opts := []mail.Option{mail.WithPort(m.cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return Delivery{}, fmt.Errorf("email: client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return Delivery{}, fmt.Errorf("email: send: %w", err)
	}
	log.Info("email delivered")
	return Delivery{Timestamp: m.now(), Recipient: req.To, Attachments: names}, nil
}
