package mailer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Dispatcher delivers messages through a bounded queue and a fixed worker
// pool. Enqueue never blocks the caller: the HTTP response does not wait for
// SMTP, and a send failure never rolls back the OTP that was already issued.
type Dispatcher struct {
	sender Sender
	logger *zap.Logger
	queue  chan Message
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewDispatcher starts workers goroutines draining a queue of the given size.
func NewDispatcher(sender Sender, logger *zap.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	d := &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Message, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for m := range d.queue {
		if err := d.sender.Send(m.To, m.Subject, m.Body); err != nil {
			d.logger.Warn("mail send failed",
				zap.Error(err),
				zap.String("to", m.To),
				zap.String("subject", m.Subject))
		}
	}
}

// Enqueue submits a message for delivery. When the queue is full the message
// is dropped with a log entry rather than blocking the request path.
func (d *Dispatcher) Enqueue(m Message) {
	select {
	case d.queue <- m:
	default:
		d.logger.Warn("mail queue full, dropping message",
			zap.String("to", m.To),
			zap.String("subject", m.Subject))
	}
}

// Close stops accepting messages and waits for the workers to drain the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

// LogSender logs messages instead of delivering them. Used in development
// when no SMTP host is configured. Bodies carry codes, so only metadata is logged.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the message metadata and reports success.
func (s *LogSender) Send(to, subject, body string) error {
	s.Logger.Info("mail (not sent, no SMTP host)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// ActivationMessage builds the account-activation email carrying the code.
func ActivationMessage(to string, code int) Message {
	return Message{
		To:      to,
		Subject: "Activate your account",
		Body:    fmt.Sprintf("Your account activation code is %d.", code),
	}
}

// TwoFactorMessage builds the two-factor login email carrying the code.
func TwoFactorMessage(to string, code int) Message {
	return Message{
		To:      to,
		Subject: "Your two-factor login code",
		Body:    fmt.Sprintf("Your two-factor login code is %d.", code),
	}
}

// PasswordResetMessage builds the forgot-password email carrying the code.
func PasswordResetMessage(to string, code int) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Your password reset code is %d.", code),
	}
}
