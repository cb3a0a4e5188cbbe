package gmailclient

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

// SendEmail sends a plain-text email, waiting for the rate limiter first
func (c *Client) SendEmail(to, subject, body string) error {
	if err := c.limiter.Wait(c.ctx); err != nil {
		return fmt.Errorf("failed to wait for send slot: %w", err)
	}

	raw := base64.URLEncoding.EncodeToString([]byte(buildMessage(c.sender, to, subject, body)))

	sent, err := c.service.Users.Messages.Send(c.userID, &gmail.Message{Raw: raw}).Context(c.ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug("Email sent", zap.String("to", to), zap.String("subject", subject), zap.String("message_id", sent.Id))
	return nil
}

// buildMessage renders an RFC 2822 message; the subject is Q-encoded so
// conference names and portfolios with non-ASCII characters survive
func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
