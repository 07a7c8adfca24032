package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/restock/pkg/logger"
	"github.com/rmax-ai/restock/pkg/notify"
)

const (
	// DefaultAlertCooldown is the minimum time between two low-stock alerts
	// for the same item.
	DefaultAlertCooldown = 24 * time.Hour
	// MaxRetries is the number of delivery attempts.
	MaxRetries = 3
	// DefaultLanguage is the alert language when none is configured.
	DefaultLanguage = "pt-BR"
)

// Alert results recorded in RestockAlertTotal.
const (
	alertSent       = "sent"
	alertFailed     = "failed"
	alertSuppressed = "suppressed"
)

// Dispatcher sends low-stock SMS alerts. The cooldown is tracked on the item
// record itself (Item.LastAlertAt), so it survives restarts and is shared by
// every process using the same store.
type Dispatcher struct {
	store        ItemStore
	sender       notify.Sender
	cooldown     time.Duration
	defaultPhone string
	language     string
	backoff      time.Duration
	log          *logger.Logger
}

// NewDispatcher creates a new alert dispatcher.
func NewDispatcher(store ItemStore, sender notify.Sender, cooldown time.Duration) *Dispatcher {
	if sender == nil {
		sender = notify.NopSender{}
	}
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		cooldown: cooldown,
		language: DefaultLanguage,
		backoff:  time.Second,
		log:      logger.Nop(),
	}
}

// SetDefaultPhone sets the number alerted for items without their own.
func (d *Dispatcher) SetDefaultPhone(phone string) {
	d.defaultPhone = phone
}

// SetLanguage sets the alert message language.
func (d *Dispatcher) SetLanguage(lang string) {
	if lang != "" {
		d.language = lang
	}
}

// SetLogger sets the dispatcher logger.
func (d *Dispatcher) SetLogger(l *logger.Logger) {
	if l != nil {
		d.log = l
	}
}

func (d *Dispatcher) phoneFor(item Item) string {
	if item.PhoneNumber != "" {
		return item.PhoneNumber
	}
	return d.defaultPhone
}

// claim decides whether the transition from before to after warrants an
// alert. When it does, after.LastAlertAt is stamped so the claim is
// persisted in the same write as the quantity change.
func (d *Dispatcher) claim(before Item, after *Item, now time.Time) bool {
	crossed := after.CurrentQuantity < after.MinimumQuantity &&
		before.CurrentQuantity >= after.MinimumQuantity
	if !crossed || d.phoneFor(*after) == "" {
		return false
	}

	if after.LastAlertAt != nil && now.Sub(*after.LastAlertAt) < d.cooldown {
		RestockAlertTotal.WithLabelValues(alertSuppressed).Inc()
		d.log.Infow("alert_suppressed", "item_id", after.ID, "last_alert_at", after.LastAlertAt)
		return false
	}

	stamp := now
	after.LastAlertAt = &stamp
	return true
}

// claimPending stamps a still-low item whose cooldown has elapsed. Unlike
// claim it needs no crossing, and repeated suppression is not counted since
// the poller asks on every tick.
func (d *Dispatcher) claimPending(it *Item, now time.Time) bool {
	if !it.IsLowStock() || d.phoneFor(*it) == "" {
		return false
	}
	if it.LastAlertAt != nil && now.Sub(*it.LastAlertAt) < d.cooldown {
		return false
	}
	stamp := now
	it.LastAlertAt = &stamp
	return true
}

// deliver sends the alert for a claimed item. On failure the claim is
// released so a later crossing can try again.
func (d *Dispatcher) deliver(ctx context.Context, item Item, previous *time.Time) error {
	suggested := notify.SuggestedQuantity(
		item.CurrentQuantity,
		item.MinimumQuantity,
		item.UsageRate,
		item.UsagePeriod,
		item.AcquisitionDifficulty,
	)
	message := notify.FormatLowStockMessage(notify.LowStock{
		Name:      item.Name,
		Current:   item.CurrentQuantity,
		Minimum:   item.MinimumQuantity,
		Unit:      item.Unit,
		Suggested: suggested,
	}, d.language)

	err := d.send(ctx, d.phoneFor(item), message)
	if err == nil {
		RestockAlertTotal.WithLabelValues(alertSent).Inc()
		d.log.Infow("alert_sent", "item_id", item.ID, "suggested", suggested)
		return nil
	}

	RestockAlertTotal.WithLabelValues(alertFailed).Inc()
	d.log.Errorw("alert_failed", "item_id", item.ID, "error", err)

	claimed := item.LastAlertAt
	_, relErr := d.store.Update(ctx, item.ID, func(it *Item) error {
		if it.LastAlertAt != nil && claimed != nil && it.LastAlertAt.Equal(*claimed) {
			it.LastAlertAt = previous
		}
		return nil
	})
	if relErr != nil {
		d.log.Warnw("alert_release_failed", "item_id", item.ID, "error", relErr)
	}
	return err
}

// send performs delivery with retries. Rejections by the provider are final.
func (d *Dispatcher) send(ctx context.Context, phone, message string) error {
	var lastErr error
	for i := 0; i < MaxRetries; i++ {
		if i > 0 {
			// Linear backoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * d.backoff):
			}
		}

		err := d.sender.Send(ctx, phone, message)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, notify.ErrRejected) {
			return err
		}
	}
	return fmt.Errorf("max retries reached: %w", lastErr)
}
