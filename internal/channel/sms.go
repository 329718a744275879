package channel

import (
	"context"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// smsMaxLength keeps messages within two concatenated segments
const smsMaxLength = 306

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// SMSClient sends text messages through an HTTP gateway
type SMSClient struct {
	http   *resty.Client
	sender string
	logger *zap.Logger
}

// NewSMSClient creates a new SMSClient
func NewSMSClient(opts ProviderOptions, sender string, logger *zap.Logger) *SMSClient {
	return &SMSClient{
		http:   newHTTPClient(opts),
		sender: sender,
		logger: logger,
	}
}

// Send delivers one text message, truncating overlong text
func (c *SMSClient) Send(ctx context.Context, phone, text string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(smsRequest{
			From: c.sender,
			To:   phone,
			Text: truncate(text, smsMaxLength),
		}).
		Post("/v1/messages")

	if err := checkResponse("sms", resp, err); err != nil {
		c.logger.Warn("sms delivery failed", zap.Error(err))
		return err
	}

	c.logger.Debug("sms delivered", zap.Int("attempts", attempts(resp)))
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
