package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DeliveryResult is the recorded outcome of one channel attempt
type DeliveryResult = model.NotificationDelivery

// Recipient holds the addresses a notification can be delivered to.
// Empty fields mean the channel has no destination.
type Recipient struct {
	PushUserID string
	Email      string
	Phone      string
}

// Channels holds the delivery adapters. A nil adapter disables its channel.
type Channels struct {
	Push  PushSender
	Email EmailSender
	SMS   SMSSender
}

// Dispatcher fans notifications out to the channels the recipient allows
type Dispatcher struct {
	preferences   *PreferenceResolver
	timezones     *TimezoneResolver
	users         UserStore
	notifications NotificationStore
	channels      Channels
	timeout       time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	preferences *PreferenceResolver,
	timezones *TimezoneResolver,
	users UserStore,
	notifications NotificationStore,
	channels Channels,
	timeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		preferences:   preferences,
		timezones:     timezones,
		users:         users,
		notifications: notifications,
		channels:      channels,
		timeout:       timeout,
		now:           time.Now,
		logger:        logger,
	}
}

// Dispatch persists a new user-facing notification and delivers it to the
// user's own push, email and phone
func (d *Dispatcher) Dispatch(ctx context.Context, n *model.Notification) ([]DeliveryResult, error) {
	rcpt, err := d.userRecipient(ctx, n.UserID)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, n, rcpt, false)
}

// DispatchTo persists a new notification and delivers it to an explicit
// recipient, such as a caregiver
func (d *Dispatcher) DispatchTo(ctx context.Context, n *model.Notification, rcpt Recipient) ([]DeliveryResult, error) {
	return d.dispatch(ctx, n, rcpt, false)
}

// DispatchStored delivers a notification that is already persisted, such as
// a claimed reminder, and updates its outcome in place
func (d *Dispatcher) DispatchStored(ctx context.Context, n *model.Notification) ([]DeliveryResult, error) {
	rcpt, err := d.userRecipient(ctx, n.UserID)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, n, rcpt, true)
}

func (d *Dispatcher) userRecipient(ctx context.Context, userID string) (Recipient, error) {
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		d.logger.Error("failed to load notification recipient",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return Recipient{}, fmt.Errorf("failed to load notification recipient: %w", err)
	}

	rcpt := Recipient{PushUserID: user.ID, Email: user.Email}
	if user.Phone != nil {
		rcpt.Phone = *user.Phone
	}
	return rcpt, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, n *model.Notification, rcpt Recipient, persisted bool) ([]DeliveryResult, error) {
	logger := d.logger.With(
		zap.String("user_id", n.UserID),
		zap.String("category", string(n.Category)),
	)

	pref, err := d.preferences.Resolve(ctx, n.UserID)
	if err != nil {
		return nil, err
	}

	enabled, err := CategoryEnabled(pref, n.Category)
	if err != nil {
		logger.Error("dropping notification with unknown category", zap.Error(err))
		return nil, err
	}
	if !enabled {
		logger.Debug("notification category disabled by user")
		if persisted {
			reason := model.SkipReasonDisabled
			n.SkipReason = &reason
			if err := d.notifications.UpdateOutcome(ctx, n); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.ScheduledFor.IsZero() {
		n.ScheduledFor = d.now()
	}

	local := d.now().In(d.timezones.Location(ctx, n.UserID))
	if Suppressed(pref, n.Priority, local) {
		logger.Info("notification suppressed by quiet hours",
			zap.String("priority", string(n.Priority)),
		)
		return d.skip(ctx, n, persisted, model.SkipReasonQuietHours, n.Channels)
	}

	var channels []model.Channel
	var unreachable []model.Channel
	for _, ch := range n.Channels {
		if n.CaregiverID == nil && !pref.ChannelEnabled(ch) {
			continue
		}
		if !d.reachable(ch, rcpt) {
			unreachable = append(unreachable, ch)
			continue
		}
		channels = append(channels, ch)
	}

	if len(channels) == 0 {
		logger.Info("no deliverable channel for notification")
		return d.skip(ctx, n, persisted, model.SkipReasonNoChannels, unreachable)
	}

	n.Status = model.NotificationStatusPending
	if !persisted {
		if err := d.notifications.Create(ctx, n); err != nil {
			return nil, err
		}
	}

	results := make([]DeliveryResult, len(channels))
	var g errgroup.Group
	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			result := DeliveryResult{
				ID:             uuid.New().String(),
				NotificationID: n.ID,
				Channel:        ch,
				Status:         model.DeliveryStatusDelivered,
				Attempts:       1,
				CreatedAt:      d.now(),
			}
			if err := d.send(sendCtx, ch, n, rcpt); err != nil {
				msg := err.Error()
				result.Status = model.DeliveryStatusFailed
				result.LastError = &msg
				var counted attemptCounter
				if errors.As(err, &counted) {
					result.Attempts = counted.Attempts()
				}
				logger.Warn("channel delivery failed",
					zap.Error(err),
					zap.Int("attempts", result.Attempts),
					zap.String("channel", string(ch)),
					zap.String("notification_id", n.ID),
				)
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	for _, ch := range unreachable {
		results = append(results, d.skippedDelivery(n, ch, model.SkipReasonNoContact))
	}

	delivered := 0
	for i := range results {
		if results[i].Status == model.DeliveryStatusDelivered {
			delivered++
		}
		if err := d.notifications.CreateDelivery(ctx, &results[i]); err != nil {
			logger.Error("failed to record delivery",
				zap.Error(err),
				zap.String("channel", string(results[i].Channel)),
			)
		}
	}

	if delivered > 0 {
		sentAt := d.now()
		n.Status = model.NotificationStatusSent
		n.SentAt = &sentAt
	} else {
		n.Status = model.NotificationStatusFailed
	}
	n.Deliveries = results

	if err := d.notifications.UpdateOutcome(ctx, n); err != nil {
		return results, err
	}

	logger.Info("notification dispatched",
		zap.String("notification_id", n.ID),
		zap.String("status", string(n.Status)),
		zap.Int("delivered", delivered),
		zap.Int("channels", len(channels)),
	)

	return results, nil
}

func (d *Dispatcher) skip(ctx context.Context, n *model.Notification, persisted bool, reason string, channels []model.Channel) ([]DeliveryResult, error) {
	n.Status = model.NotificationStatusPending
	n.SkipReason = &reason

	if persisted {
		if err := d.notifications.UpdateOutcome(ctx, n); err != nil {
			return nil, err
		}
	} else if err := d.notifications.Create(ctx, n); err != nil {
		return nil, err
	}

	results := make([]DeliveryResult, 0, len(channels))
	for _, ch := range channels {
		result := d.skippedDelivery(n, ch, reason)
		if err := d.notifications.CreateDelivery(ctx, &result); err != nil {
			d.logger.Error("failed to record skipped delivery",
				zap.Error(err),
				zap.String("notification_id", n.ID),
				zap.String("channel", string(ch)),
			)
		}
		results = append(results, result)
	}
	n.Deliveries = results

	return results, nil
}

func (d *Dispatcher) skippedDelivery(n *model.Notification, ch model.Channel, reason string) DeliveryResult {
	return DeliveryResult{
		ID:             uuid.New().String(),
		NotificationID: n.ID,
		Channel:        ch,
		Status:         model.DeliveryStatusSkipped,
		LastError:      &reason,
		CreatedAt:      d.now(),
	}
}

func (d *Dispatcher) reachable(ch model.Channel, rcpt Recipient) bool {
	switch ch {
	case model.ChannelPush:
		return d.channels.Push != nil && rcpt.PushUserID != ""
	case model.ChannelEmail:
		return d.channels.Email != nil && rcpt.Email != ""
	case model.ChannelSMS:
		return d.channels.SMS != nil && rcpt.Phone != ""
	default:
		return false
	}
}

var errUnsupportedChannel = errors.New("unsupported channel")

func (d *Dispatcher) send(ctx context.Context, ch model.Channel, n *model.Notification, rcpt Recipient) error {
	switch ch {
	case model.ChannelPush:
		return d.channels.Push.Send(ctx, rcpt.PushUserID, n.Title, n.Message, n.Priority, n.Data)
	case model.ChannelEmail:
		body := "<h2>" + html.EscapeString(n.Title) + "</h2><p>" + html.EscapeString(n.Message) + "</p>"
		return d.channels.Email.Send(ctx, rcpt.Email, n.Title, body)
	case model.ChannelSMS:
		return d.channels.SMS.Send(ctx, rcpt.Phone, n.Title+": "+n.Message)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedChannel, ch)
	}
}
