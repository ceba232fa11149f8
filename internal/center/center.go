// Package center is a local notification center: the notify.Service the app
// runs against. Pending requests live in SQLite, calendar triggers are
// matched with cron expressions, and a delivery loop hands due requests to a
// Presenter.
package center

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/notify"
	"github.com/ykvlv/time-signal/internal/store"
)

// ErrNotPermitted is returned by Schedule before authorization was granted.
var ErrNotPermitted = errors.New("notifications not permitted")

// KeyAuthorization holds the persisted authorization status.
const KeyAuthorization = "center.authorization"

const dueBatch = 100

// Repo is what the center needs from storage. store.SQLite implements it.
type Repo interface {
	store.KV
	store.PendingRepo
}

// Options configures a Center.
type Options struct {
	AutoGrant    bool // answer to the first authorization request
	SoundEnabled bool
	PollInterval time.Duration
	Location     *time.Location
	Now          func() time.Time
}

// Center implements notify.Service.
type Center struct {
	repo      Repo
	presenter Presenter
	log       *zap.Logger
	opts      Options

	authMu sync.Mutex
}

var _ notify.Service = (*Center)(nil)

func New(repo Repo, presenter Presenter, log *zap.Logger, opts Options) *Center {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Center{repo: repo, presenter: presenter, log: log.Named("center"), opts: opts}
}

func (c *Center) now() time.Time { return c.opts.Now().In(c.opts.Location) }

func (c *Center) status(ctx context.Context) (notify.AuthorizationStatus, error) {
	b, err := c.repo.Get(ctx, KeyAuthorization)
	if errors.Is(err, store.ErrNotFound) {
		return notify.StatusNotDetermined, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		c.log.Warn("authorization status unreadable", zap.ByteString("value", b))
		return notify.StatusNotDetermined, nil
	}
	return notify.AuthorizationStatus(n), nil
}

func (c *Center) QueryAuthorization(ctx context.Context) (notify.Settings, error) {
	st, err := c.status(ctx)
	if err != nil {
		return notify.Settings{}, err
	}
	return notify.Settings{Status: st, SoundEnabled: c.opts.SoundEnabled}, nil
}

// RequestAuthorization answers once; later requests return the recorded answer.
func (c *Center) RequestAuthorization(ctx context.Context, opts notify.AuthOptions) (bool, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	st, err := c.status(ctx)
	if err != nil {
		return false, err
	}
	if st != notify.StatusNotDetermined {
		return st.Allowed(), nil
	}
	st = notify.StatusDenied
	if c.opts.AutoGrant {
		st = notify.StatusAuthorized
	}
	if err := c.repo.Set(ctx, KeyAuthorization, []byte(strconv.Itoa(int(st)))); err != nil {
		return false, err
	}
	c.log.Info("authorization decided",
		zap.Stringer("status", st),
		zap.Bool("alert", opts.Alert),
		zap.Bool("sound", opts.Sound),
	)
	return st.Allowed(), nil
}

func (c *Center) ListPending(ctx context.Context) ([]string, error) {
	return c.repo.ListPendingIDs(ctx)
}

func (c *Center) Cancel(ctx context.Context, identifiers []string) error {
	return c.repo.DeletePending(ctx, identifiers)
}

// Schedule stores req, replacing a pending request with the same identifier.
func (c *Center) Schedule(ctx context.Context, req notify.Request) error {
	if err := req.Trigger.Validate(); err != nil {
		return err
	}
	st, err := c.status(ctx)
	if err != nil {
		return err
	}
	if !st.Allowed() {
		return fmt.Errorf("%w: status %s", ErrNotPermitted, st)
	}

	content, err := json.Marshal(req.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	p := store.PendingRequest{Identifier: req.Identifier, Content: content}
	now := c.now()
	if req.Trigger.Repeats {
		p.Cron = CronExpr(req.Trigger)
		p.NextFireAt, err = nextAfter(p.Cron, now)
		if err != nil {
			return err
		}
	} else {
		p.NextFireAt = now.Add(req.Trigger.After)
	}
	return c.repo.UpsertPending(ctx, p)
}

// CronExpr renders a repeating trigger: "M * * * *" or "M H * * *".
func CronExpr(t notify.Trigger) string {
	if t.Hour == nil {
		return fmt.Sprintf("%d * * * *", t.Minute)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute, *t.Hour)
}

// nextAfter returns the first match of expr strictly after the minute of t.
func nextAfter(expr string, t time.Time) (time.Time, error) {
	start := t.Truncate(time.Minute).Add(time.Minute)
	next, err := gronx.NextTickAfter(expr, start, true)
	if err != nil {
		return time.Time{}, fmt.Errorf("next tick of %q: %w", expr, err)
	}
	return next, nil
}
