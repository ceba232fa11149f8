// Package notifytest provides an in-memory notify.Service that records every
// call, for tests that must not touch a real notification center.
package notifytest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ykvlv/time-signal/internal/notify"
)

// ErrRejected is returned by Schedule for identifiers listed in Service.Reject.
var ErrRejected = errors.New("platform rejected request")

// Service is a recording fake. The zero value reports StatusNotDetermined.
type Service struct {
	mu sync.Mutex

	Settings notify.Settings
	// Grant is the answer to the next RequestAuthorization when status is not determined.
	Grant bool
	// Reject makes Schedule fail for these identifiers.
	Reject map[string]bool
	// OnSchedule and OnCancel run before the call takes effect, outside the lock.
	OnSchedule func(id string)
	OnCancel   func(ids []string)

	pending       map[string]notify.Request
	authRequests  int
	scheduleCalls int
	cancelled     [][]string
	log           []string
}

var _ notify.Service = (*Service)(nil)

// New returns a fake that is already authorized with sound enabled.
func New() *Service {
	return &Service{Settings: notify.Settings{Status: notify.StatusAuthorized, SoundEnabled: true}}
}

func (s *Service) QueryAuthorization(ctx context.Context) (notify.Settings, error) {
	if err := ctx.Err(); err != nil {
		return notify.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Settings, nil
}

func (s *Service) RequestAuthorization(ctx context.Context, _ notify.AuthOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authRequests++
	if s.Settings.Status == notify.StatusNotDetermined {
		if s.Grant {
			s.Settings.Status = notify.StatusAuthorized
		} else {
			s.Settings.Status = notify.StatusDenied
		}
	}
	return s.Settings.Status.Allowed(), nil
}

func (s *Service) ListPending(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked(), nil
}

func (s *Service) Cancel(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.OnCancel != nil {
		s.OnCancel(ids)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, append([]string(nil), ids...))
	for _, id := range ids {
		delete(s.pending, id)
		s.log = append(s.log, "cancel "+id)
	}
	return nil
}

func (s *Service) Schedule(ctx context.Context, req notify.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.OnSchedule != nil {
		s.OnSchedule(req.Identifier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleCalls++
	if err := req.Trigger.Validate(); err != nil {
		return err
	}
	if s.Reject[req.Identifier] {
		return ErrRejected
	}
	if s.pending == nil {
		s.pending = map[string]notify.Request{}
	}
	s.pending[req.Identifier] = req
	s.log = append(s.log, "schedule "+req.Identifier)
	return nil
}

// Put installs a request directly, as another app or an earlier run would.
func (s *Service) Put(req notify.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = map[string]notify.Request{}
	}
	s.pending[req.Identifier] = req
}

// SetStatus changes the authorization status.
func (s *Service) SetStatus(st notify.AuthorizationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Settings.Status = st
}

// Pending returns the installed identifiers, sorted.
func (s *Service) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked()
}

// Request returns the installed request for id.
func (s *Service) Request(id string) (notify.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pending[id]
	return r, ok
}

// AuthRequests counts RequestAuthorization calls.
func (s *Service) AuthRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authRequests
}

// ScheduleCalls counts Schedule calls, including rejected ones.
func (s *Service) ScheduleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleCalls
}

// Log returns "schedule <id>" and "cancel <id>" entries in call order.
func (s *Service) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func (s *Service) idsLocked() []string {
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
