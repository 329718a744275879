package channel

import (
	"context"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// EmailClient sends transactional email through an HTTP API
type EmailClient struct {
	http   *resty.Client
	from   string
	logger *zap.Logger
}

// NewEmailClient creates a new EmailClient sending as from
func NewEmailClient(opts ProviderOptions, from string, logger *zap.Logger) *EmailClient {
	return &EmailClient{
		http:   newHTTPClient(opts),
		from:   from,
		logger: logger,
	}
}

// Send delivers one HTML email
func (c *EmailClient) Send(ctx context.Context, address, subject, html string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(emailRequest{
			From:    c.from,
			To:      address,
			Subject: subject,
			HTML:    html,
		}).
		Post("/v1/emails")

	if err := checkResponse("email", resp, err); err != nil {
		c.logger.Warn("email delivery failed", zap.Error(err))
		return err
	}

	c.logger.Debug("email delivered", zap.String("subject", subject), zap.Int("attempts", attempts(resp)))
	return nil
}
