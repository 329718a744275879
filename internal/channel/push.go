package channel

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

type pushRequest struct {
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data,omitempty"`
}

// PushClient sends push notifications through a gateway that fans out to
// the user's registered devices
type PushClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewPushClient creates a new PushClient
func NewPushClient(opts ProviderOptions, logger *zap.Logger) *PushClient {
	return &PushClient{
		http:   newHTTPClient(opts),
		logger: logger,
	}
}

// Send delivers one push notification
func (c *PushClient) Send(ctx context.Context, userID, title, body string, priority model.Priority, data map[string]string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(pushRequest{
			UserID:   userID,
			Title:    title,
			Body:     body,
			Priority: string(priority),
			Data:     data,
		}).
		Post("/v1/push")

	if err := checkResponse("push", resp, err); err != nil {
		c.logger.Warn("push delivery failed", zap.Error(err), zap.String("user_id", userID))
		return err
	}

	c.logger.Debug("push delivered", zap.String("user_id", userID), zap.Int("attempts", attempts(resp)))
	return nil
}
