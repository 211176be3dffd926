package services

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/websocket"
)

// Notifier fans workflow events out to connected dashboard sessions and,
// when SMTP is configured, to the operations mailbox. Delivery is
// best-effort on both paths; a failed notification never fails the
// operation that produced it.
type Notifier struct {
	Hub *websocket.Hub

	smtpHost string
	smtpPort int
	smtpUser string
	smtpPass string
	from     string
	to       string
}

// NewNotifier creates a notifier. Mail is disabled unless SMTP_HOST and
// NOTIFY_EMAIL are set.
func NewNotifier(hub *websocket.Hub) *Notifier {
	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		port = p
	}
	return &Notifier{
		Hub:      hub,
		smtpHost: os.Getenv("SMTP_HOST"),
		smtpPort: port,
		smtpUser: os.Getenv("SMTP_USER"),
		smtpPass: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
		to:       os.Getenv("NOTIFY_EMAIL"),
	}
}

// CommissionApproved announces an approved commission to the dashboard.
func (n *Notifier) CommissionApproved(t *models.Transaction) {
	if n == nil {
		return
	}
	n.broadcast(websocket.EventCommissionApproved, "Commission approved", t)
}

// CommissionPaid announces a commission payout.
func (n *Notifier) CommissionPaid(t *models.Transaction) {
	if n == nil {
		return
	}
	n.broadcast(websocket.EventCommissionPaid, "Commission paid", t)
	n.mail("Commission paid",
		fmt.Sprintf("Commission of %.2f was paid on transaction %s.", t.Commission, t.ID.Hex()))
}

// AgentDeleted announces an agent removal.
func (n *Notifier) AgentDeleted(a *models.Agent) {
	if n == nil {
		return
	}
	n.broadcast(websocket.EventAgentDeleted, "Agent deleted", a)
	n.mail("Agent deleted",
		fmt.Sprintf("Agent %s was removed from the dashboard.", a.DisplayName()))
}

func (n *Notifier) broadcast(eventType, message string, data interface{}) {
	if n.Hub == nil {
		return
	}
	n.Hub.Broadcast(websocket.Event{
		Type:    eventType,
		Message: message,
		Data:    data,
	})
}

func (n *Notifier) mail(subject, body string) {
	if n.smtpHost == "" || n.to == "" {
		return
	}
	from := n.from
	if from == "" {
		from = n.smtpUser
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// Send off the request path; the mail server must never slow a
	// mutation down.
	go func() {
		d := gomail.NewDialer(n.smtpHost, n.smtpPort, n.smtpUser, n.smtpPass)
		if err := d.DialAndSend(m); err != nil {
			log.Printf("Error sending notification mail %q: %v", subject, err)
		}
	}()
}
