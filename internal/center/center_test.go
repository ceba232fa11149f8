package center

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/notify"
	"github.com/ykvlv/time-signal/internal/store"
)

type recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	flashes    []time.Time
}

func (r *recorder) Present(d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recorder) Flash(at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashes = append(r.flashes, at)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		out = append(out, d.Identifier)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db  *store.SQLite
	c   *Center
	rec *recorder
	clk *clock
}

func at(h, m, s int) time.Time { return time.Date(2026, 3, 2, h, m, s, 0, time.UTC) }

func newFixture(t *testing.T, autoGrant bool) *fixture {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "center.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, rec: &recorder{}, clk: &clock{now: at(10, 7, 0)}}
	f.c = New(db, f.rec, zap.NewNop(), Options{
		AutoGrant:    autoGrant,
		SoundEnabled: true,
		Location:     time.UTC,
		Now:          f.clk.Now,
	})
	return f
}

func (f *fixture) grant(t *testing.T) {
	t.Helper()
	ok, err := f.c.RequestAuthorization(context.Background(), notify.AuthOptions{Alert: true, Sound: true})
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) nextFire(t *testing.T, id string) time.Time {
	t.Helper()
	due, err := f.db.ListDue(context.Background(), f.clk.Now().Add(48*time.Hour), 100)
	require.NoError(t, err)
	for _, p := range due {
		if p.Identifier == id {
			return p.NextFireAt
		}
	}
	t.Fatalf("%s not pending", id)
	return time.Time{}
}

func TestAuthorization_FirstAnswerSticks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	s, err := f.c.QueryAuthorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusNotDetermined, s.Status)
	assert.True(t, s.SoundEnabled)

	ok, err := f.c.RequestAuthorization(ctx, notify.AuthOptions{Alert: true})
	require.NoError(t, err)
	assert.False(t, ok)

	s, err = f.c.QueryAuthorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusDenied, s.Status)

	// A later request does not ask again.
	again := New(f.db, f.rec, zap.NewNop(), Options{AutoGrant: true, Location: time.UTC})
	ok, err = again.RequestAuthorization(ctx, notify.AuthOptions{Alert: true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSchedule_RequiresAuthorization(t *testing.T) {
	f := newFixture(t, true)
	err := f.c.Schedule(context.Background(), notify.Request{Identifier: "x", Trigger: notify.EveryHourAt(5)})
	require.ErrorIs(t, err, ErrNotPermitted)
}

func TestSchedule_RejectsInvalidTrigger(t *testing.T) {
	f := newFixture(t, true)
	f.grant(t)
	err := f.c.Schedule(context.Background(), notify.Request{Identifier: "x", Trigger: notify.EveryHourAt(60)})
	require.ErrorIs(t, err, notify.ErrInvalidTrigger)
}

func TestSchedule_NextFireTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.grant(t)

	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "later", Trigger: notify.EveryHourAt(15)}))
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "now", Trigger: notify.EveryHourAt(7)}))
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "evening", Trigger: notify.DailyAt(23, 5)}))
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "morning", Trigger: notify.DailyAt(9, 0)}))

	assert.WithinDuration(t, at(10, 15, 0), f.nextFire(t, "later"), 0)
	// The current minute counts as already passed.
	assert.WithinDuration(t, at(11, 7, 0), f.nextFire(t, "now"), 0)
	assert.WithinDuration(t, at(23, 5, 0), f.nextFire(t, "evening"), 0)
	assert.WithinDuration(t, at(9, 0, 0).AddDate(0, 0, 1), f.nextFire(t, "morning"), 0)

	ids, err := f.c.ListPending(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"later", "now", "evening", "morning"}, ids)

	require.NoError(t, f.c.Cancel(ctx, []string{"now", "morning", "unknown"}))
	ids, err = f.c.ListPending(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"later", "evening"}, ids)
}

func TestSchedule_ReplacesSameIdentifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.grant(t)

	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "a", Trigger: notify.EveryHourAt(15)}))
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "a", Trigger: notify.EveryHourAt(20)}))

	ids, err := f.c.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
	assert.WithinDuration(t, at(10, 20, 0), f.nextFire(t, "a"), 0)
}

func TestTick_DeliversAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.grant(t)

	content := notify.Content{Title: "Time Signal", Body: ":15", Sound: notify.DefaultSound()}
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "q", Content: content, Trigger: notify.EveryHourAt(15)}))

	f.c.tick(ctx)
	assert.Empty(t, f.rec.ids())

	f.clk.Set(at(10, 15, 2))
	f.c.tick(ctx)
	require.Equal(t, []string{"q"}, f.rec.ids())
	assert.Equal(t, content, f.rec.deliveries[0].Content)
	assert.WithinDuration(t, at(11, 15, 0), f.nextFire(t, "q"), 0)

	f.c.tick(ctx)
	assert.Len(t, f.rec.ids(), 1)
}

func TestTick_MissedOccurrencesCollapse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.grant(t)
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "q", Trigger: notify.EveryHourAt(15)}))

	f.clk.Set(at(14, 40, 0))
	f.c.tick(ctx)
	assert.Len(t, f.rec.ids(), 1)
	assert.WithinDuration(t, at(15, 15, 0), f.nextFire(t, "q"), 0)
}

func TestTick_OneShotIsRemoved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.grant(t)
	require.NoError(t, f.c.Schedule(ctx, notify.Request{Identifier: "preview", Trigger: notify.In(time.Second)}))

	f.clk.Set(at(10, 7, 1))
	f.c.tick(ctx)
	assert.Equal(t, []string{"preview"}, f.rec.ids())

	ids, err := f.c.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCronExpr(t *testing.T) {
	assert.Equal(t, "5 * * * *", CronExpr(notify.EveryHourAt(5)))
	assert.Equal(t, "30 23 * * *", CronExpr(notify.DailyAt(23, 30)))
}

func TestConsolePresenter(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsolePresenter(&buf)

	require.NoError(t, p.Present(Delivery{
		Identifier: "x",
		Content:    notify.Content{Title: "Time Signal", Body: "10:15", Sound: notify.NamedSound("/sounds/bell.caf")},
		At:         at(10, 15, 0),
	}))
	out := buf.String()
	assert.Contains(t, out, "Time Signal")
	assert.Contains(t, out, "10:15")
	assert.Contains(t, out, "\a")
	assert.Contains(t, out, "bell.caf")

	buf.Reset()
	require.NoError(t, p.Present(Delivery{Content: notify.Content{Title: " ", Body: " "}, At: at(10, 16, 0)}))
	assert.NotContains(t, buf.String(), "\a")
	assert.NotContains(t, buf.String(), "Time Signal")

	buf.Reset()
	require.NoError(t, p.Flash(at(10, 30, 0)))
	assert.Contains(t, buf.String(), "10:30")
}
