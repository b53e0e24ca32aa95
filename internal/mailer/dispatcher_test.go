package mailer

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type recordingSender struct {
	mu     sync.Mutex
	sent   []Message
	failTo string // Send fails for this recipient
}

func (s *recordingSender) Send(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo != "" && to == s.failTo {
		return errors.New("smtp down")
	}
	s.sent = append(s.sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, zap.NewNop(), 2, 16)

	for i := 0; i < 10; i++ {
		d.Enqueue(Message{To: "u" + strconv.Itoa(i) + "@example.com", Subject: "hi", Body: "body"})
	}
	d.Close()

	if sender.count() != 10 {
		t.Errorf("want 10 delivered, got %d", sender.count())
	}
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, zap.NewNop(), 1, 4)
	d.Close()
	d.Close()
}

func TestDispatcher_SendFailureDoesNotStopWorkers(t *testing.T) {
	sender := &recordingSender{failTo: "a@example.com"}
	d := NewDispatcher(sender, zap.NewNop(), 1, 4)

	d.Enqueue(Message{To: "a@example.com"})
	d.Enqueue(Message{To: "b@example.com"})
	d.Close()

	if sender.count() != 1 {
		t.Errorf("want 1 delivered after failure, got %d", sender.count())
	}
}

func TestMessageBuilders(t *testing.T) {
	m := ActivationMessage("u@example.com", 12345)
	if m.To != "u@example.com" || !strings.Contains(m.Body, "12345") {
		t.Errorf("activation message: %+v", m)
	}
	if TwoFactorMessage("u@example.com", 54321).Body == m.Body {
		t.Error("two-factor and activation bodies should differ")
	}
	if !strings.Contains(PasswordResetMessage("u@example.com", 11111).Body, "11111") {
		t.Error("reset message missing code")
	}
}
