package selection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/store"
)

type countingRescheduler struct{ n atomic.Int32 }

func (c *countingRescheduler) RequestReschedule() { c.n.Add(1) }

type brokenKV struct{}

var errDisk = errors.New("disk on fire")

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errDisk }
func (brokenKV) Set(context.Context, string, []byte) error   { return errDisk }

func openTestStore(t *testing.T, kv store.KV) (*Store, *countingRescheduler) {
	t.Helper()
	s, err := Open(context.Background(), kv, zap.NewNop())
	require.NoError(t, err)
	r := &countingRescheduler{}
	s.SetRescheduler(r)
	return s, r
}

func TestOpen_Defaults(t *testing.T) {
	s, _ := openTestStore(t, store.NewMemKV())
	snap := s.Snapshot()
	assert.False(t, snap.Enabled)
	assert.True(t, snap.Minutes.IsEmpty())
	assert.Equal(t, domain.DefaultPreferences(), snap.Prefs)
	assert.Empty(t, s.Sets())
}

func TestOpen_UnreadableValuesDefault(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemKV()
	require.NoError(t, kv.Set(ctx, KeyMinutes, []byte(`[1, 99]`)))
	require.NoError(t, kv.Set(ctx, KeyPreferences, []byte(`{"bannerEnabled": "yes"`)))
	require.NoError(t, kv.Set(ctx, KeySavedSets, []byte(`not json`)))
	require.NoError(t, kv.Set(ctx, KeyIsOn, []byte(`1`)))

	s, _ := openTestStore(t, kv)
	snap := s.Snapshot()
	assert.True(t, snap.Minutes.IsEmpty())
	assert.Equal(t, domain.DefaultPreferences(), snap.Prefs)
	assert.False(t, snap.Enabled)
	assert.Empty(t, s.Sets())
}

func TestOpen_PartialPreferencesKeepDefaults(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemKV()
	require.NoError(t, kv.Set(ctx, KeyPreferences, []byte(`{"flashEnabled": true}`)))

	s, _ := openTestStore(t, kv)
	p := s.Preferences()
	assert.True(t, p.FlashEnabled)
	assert.True(t, p.BannerEnabled)
	assert.Equal(t, domain.DefaultSoundID, p.SelectedSoundID)
}

func TestOpen_BackingStoreFailure(t *testing.T) {
	_, err := Open(context.Background(), brokenKV{}, zap.NewNop())
	require.ErrorIs(t, err, errDisk)
}

func TestToggleMinute_Involution(t *testing.T) {
	ctx := context.Background()
	s, r := openTestStore(t, store.NewMemKV())
	require.NoError(t, s.ApplyBulk(ctx, domain.MustMinuteSet(0, 30)))
	start := s.Minutes()

	for m := domain.MinMinute; m <= domain.MaxMinute; m++ {
		require.NoError(t, s.ToggleMinute(ctx, m))
		require.NoError(t, s.ToggleMinute(ctx, m))
		require.Equal(t, start, s.Minutes(), "minute %d", m)
	}
	assert.EqualValues(t, 1+2*60, r.n.Load())
}

func TestToggleMinute_OutOfRange(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemKV()
	s, r := openTestStore(t, kv)
	require.NoError(t, s.ToggleMinute(ctx, 5))
	before := s.Minutes()

	for _, m := range []int{-1, 60, 75} {
		err := s.ToggleMinute(ctx, m)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
	assert.Equal(t, before, s.Minutes())
	assert.EqualValues(t, 1, r.n.Load())
}

func TestApplyBulk_ToggleAsBlock(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, store.NewMemKV())
	tens := domain.MustMinuteSet(0, 10, 20, 30, 40, 50)

	require.NoError(t, s.ApplyBulk(ctx, tens))
	assert.Equal(t, tens, s.Minutes())

	require.NoError(t, s.ApplyBulk(ctx, tens))
	assert.True(t, s.Minutes().IsEmpty())

	// Partial prior state: block is added, other minutes survive.
	require.NoError(t, s.ToggleMinute(ctx, 10))
	require.NoError(t, s.ToggleMinute(ctx, 5))
	require.NoError(t, s.ApplyBulk(ctx, tens))
	assert.Equal(t, tens.Union(domain.MustMinuteSet(5)), s.Minutes())
	require.NoError(t, s.ApplyBulk(ctx, tens))
	assert.Equal(t, domain.MustMinuteSet(5), s.Minutes())
}

func TestClearAndSelectAll(t *testing.T) {
	ctx := context.Background()
	s, r := openTestStore(t, store.NewMemKV())

	require.NoError(t, s.SelectAll(ctx))
	assert.Equal(t, domain.SelectableMinutes(), s.Minutes())
	require.NoError(t, s.ClearAll(ctx))
	assert.True(t, s.Minutes().IsEmpty())
	assert.EqualValues(t, 2, r.n.Load())
}

func TestSetPreferences_RescheduleOnlyForDelivery(t *testing.T) {
	ctx := context.Background()
	s, r := openTestStore(t, store.NewMemKV())

	p := s.Preferences()
	p.FlashEnabled = true
	require.NoError(t, s.SetPreferences(ctx, p))
	assert.Zero(t, r.n.Load())

	p.SoundEnabled = false
	require.NoError(t, s.SetPreferences(ctx, p))
	assert.EqualValues(t, 1, r.n.Load())

	p.BannerEnabled = false
	require.NoError(t, s.SetPreferences(ctx, p))
	assert.EqualValues(t, 2, r.n.Load())

	p.SelectedSoundID = ""
	require.NoError(t, s.SetPreferences(ctx, p))
	assert.Equal(t, domain.DefaultSoundID, s.Preferences().SelectedSoundID)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemKV()
	s, _ := openTestStore(t, kv)

	require.NoError(t, s.ApplyBulk(ctx, domain.MustMinuteSet(0, 15, 30, 45)))
	p := s.Preferences()
	p.SelectedSoundID = "bell"
	p.FlashEnabled = true
	require.NoError(t, s.SetPreferences(ctx, p))
	require.NoError(t, s.SetEnabled(ctx, true))
	saved, err := s.SaveCurrentAsSet(ctx, "quarters")
	require.NoError(t, err)

	again, _ := openTestStore(t, kv)
	snap := again.Snapshot()
	assert.True(t, snap.Enabled)
	assert.Equal(t, domain.MustMinuteSet(0, 15, 30, 45), snap.Minutes)
	assert.Equal(t, p, snap.Prefs)
	require.Len(t, again.Sets(), 1)
	assert.Equal(t, saved, again.Sets()[0])
}

func TestSavedSets(t *testing.T) {
	ctx := context.Background()
	s, r := openTestStore(t, store.NewMemKV())

	require.NoError(t, s.ApplyBulk(ctx, domain.MustMinuteSet(0, 30)))
	halves, err := s.SaveCurrentAsSet(ctx, "  halves ")
	require.NoError(t, err)
	assert.Equal(t, "halves", halves.Name)
	assert.NotEqual(t, uuid.Nil, halves.ID)

	_, err = s.SaveCurrentAsSet(ctx, " ")
	require.ErrorIs(t, err, domain.ErrEmptyName)

	require.NoError(t, s.ClearAll(ctx))
	before := r.n.Load()
	require.NoError(t, s.LoadSet(ctx, halves.ID))
	assert.Equal(t, domain.MustMinuteSet(0, 30), s.Minutes())
	assert.Equal(t, before+1, r.n.Load())

	require.NoError(t, s.RenameSet(ctx, halves.ID, "half hours"))
	assert.Equal(t, "half hours", s.Sets()[0].Name)

	// Editing the active selection leaves the saved set alone.
	require.NoError(t, s.ToggleMinute(ctx, 15))
	assert.Equal(t, domain.MustMinuteSet(0, 30), s.Sets()[0].Minutes)

	require.NoError(t, s.DeleteSet(ctx, halves.ID))
	assert.Empty(t, s.Sets())
	assert.Equal(t, domain.MustMinuteSet(0, 15, 30), s.Minutes())

	unknown := uuid.New()
	require.ErrorIs(t, s.LoadSet(ctx, unknown), ErrSetNotFound)
	require.ErrorIs(t, s.RenameSet(ctx, unknown, "x"), ErrSetNotFound)
	require.ErrorIs(t, s.DeleteSet(ctx, unknown), ErrSetNotFound)
}

func TestPersistFailureKeepsStateAndReschedules(t *testing.T) {
	s := &Store{kv: brokenKV{}, log: zap.NewNop(), prefs: domain.DefaultPreferences()}
	r := &countingRescheduler{}
	s.SetRescheduler(r)

	err := s.ToggleMinute(context.Background(), 20)
	require.ErrorIs(t, err, errDisk)
	assert.True(t, s.Minutes().Has(20))
	assert.EqualValues(t, 1, r.n.Load())
}

func TestSaveCurrentAsSet_PersistFailureKeepsSet(t *testing.T) {
	s := &Store{kv: brokenKV{}, log: zap.NewNop(), prefs: domain.DefaultPreferences(), minutes: domain.MustMinuteSet(0, 30)}

	set, err := s.SaveCurrentAsSet(context.Background(), "halves")
	require.ErrorIs(t, err, errDisk)
	assert.NotEqual(t, uuid.Nil, set.ID)
	require.Len(t, s.Sets(), 1)
	assert.Equal(t, set, s.Sets()[0])
}
