package center

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/notify"
	"github.com/ykvlv/time-signal/internal/store"
)

// Run delivers due requests until ctx is canceled.
func (c *Center) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("delivery loop stopping")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick performs one delivery cycle: find due requests, present, advance.
func (c *Center) tick(ctx context.Context) {
	now := c.now()

	due, err := c.repo.ListDue(ctx, now, dueBatch)
	if err != nil {
		c.log.Error("ListDue failed", zap.Error(err))
		return
	}
	for _, p := range due {
		c.deliver(ctx, p, now)
	}
}

func (c *Center) deliver(ctx context.Context, p store.PendingRequest, now time.Time) {
	var content notify.Content
	if err := json.Unmarshal(p.Content, &content); err != nil {
		c.log.Error("pending content unreadable, dropping", zap.String("id", p.Identifier), zap.Error(err))
		_ = c.repo.DeletePending(ctx, []string{p.Identifier})
		return
	}

	if err := c.presenter.Present(Delivery{Identifier: p.Identifier, Content: content, At: now}); err != nil {
		c.log.Error("present failed", zap.String("id", p.Identifier), zap.Error(err))
	}

	if p.OneShot() {
		if err := c.repo.DeletePending(ctx, []string{p.Identifier}); err != nil {
			c.log.Error("delete one-shot failed", zap.String("id", p.Identifier), zap.Error(err))
		}
		return
	}

	// Missed occurrences (e.g. the host slept) collapse into this delivery.
	from := now
	if p.NextFireAt.After(from) {
		from = p.NextFireAt
	}
	next, err := nextAfter(p.Cron, from.In(c.opts.Location))
	if err != nil {
		c.log.Error("next fire failed", zap.String("id", p.Identifier), zap.Error(err))
		return
	}
	if err := c.repo.SetNextFire(ctx, p.Identifier, next); err != nil {
		c.log.Error("SetNextFire failed", zap.String("id", p.Identifier), zap.Error(err))
	}
}
