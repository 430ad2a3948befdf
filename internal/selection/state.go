// Package selection holds the server-side model of an in-progress
// registration: the chosen session, the ordered set of product codes and an
// optionally applied coupon. Transitions enforce the single-level and
// Full-versus-singles exclusivity rules so no sequence of calls can produce a
// state the pricing engine cannot price.
package selection

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/coupon"
	"github.com/osd-exam/backend-registration/internal/examcode"
)

var (
	ErrUnknownSession       = errors.New("selection: unknown session")
	ErrSessionNotSelectable = errors.New("selection: session past its deadline or inactive")
	ErrNoSession            = errors.New("selection: no session selected")
	ErrUnknownProduct       = errors.New("selection: unknown product code")
)

// State is the current selection. Codes preserves insertion order so the fee
// breakdown lists items in the order the user picked them.
type State struct {
	SessionID string          `json:"sessionId"`
	Codes     []string        `json:"codes"`
	Coupon    *catalog.Coupon `json:"coupon,omitempty"`
}

// CouponApplied reports whether a validated coupon is attached.
func (s *State) CouponApplied() bool {
	return s.Coupon != nil
}

func (s *State) hasCode(code string) bool {
	for _, c := range s.Codes {
		if c == code {
			return true
		}
	}
	return false
}

func (s *State) removeCode(code string) {
	kept := s.Codes[:0]
	for _, c := range s.Codes {
		if c != code {
			kept = append(kept, c)
		}
	}
	s.Codes = kept
}

// CouponValidator abstracts the coupon service so transitions can be tested
// without a live store.
type CouponValidator interface {
	Validate(ctx context.Context, code, sessionID string) (coupon.Result, error)
}

// Machine applies transitions to a State against a catalog snapshot. Now is
// injectable for deadline tests and defaults to time.Now.
type Machine struct {
	Catalog *catalog.Snapshot
	Now     func() time.Time
	Logger  zerolog.Logger
}

func (m Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// SelectSession picks a session. Changing sessions clears every product code
// and any applied coupon; selecting the already-selected session is a no-op.
func (m Machine) SelectSession(s *State, sessionID string) error {
	session, ok := m.Catalog.SessionByID(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	if !session.Selectable(m.now()) {
		return ErrSessionNotSelectable
	}
	if s.SessionID == sessionID {
		return nil
	}
	if s.SessionID != "" {
		m.Logger.Debug().Str("from", s.SessionID).Str("to", sessionID).Msg("session changed, selection reset")
	}
	s.SessionID = sessionID
	s.Codes = nil
	s.Coupon = nil
	return nil
}

// DeselectSession clears the session together with every dependent choice.
func (m Machine) DeselectSession(s *State) {
	s.SessionID = ""
	s.Codes = nil
	s.Coupon = nil
}

// SelectProduct adds a product code to the selection. Invariants enforced:
// only one exam level at a time (codes of other levels are dropped), a
// Full-course code displaces that group's single modules and vice versa, and
// a complete single-module set collapses into the Full code when the catalog
// carries one. A code with no product in the current catalog is rejected and
// the state is left untouched.
func (m Machine) SelectProduct(s *State, code string) error {
	if s.SessionID == "" {
		return ErrNoSession
	}
	product, ok := m.Catalog.ProductByCode(code)
	if !ok {
		return ErrUnknownProduct
	}
	if s.hasCode(code) {
		return nil
	}

	kept := make([]string, 0, len(s.Codes)+1)
	for _, existing := range s.Codes {
		p, ok := m.Catalog.ProductByCode(existing)
		if !ok {
			// Catalog refreshed underneath the selection; drop the orphan.
			m.Logger.Warn().Str("code", existing).Msg("dropping code no longer in catalog")
			continue
		}
		if p.Level != product.Level {
			continue
		}
		sameGroup := p.Location == product.Location
		if sameGroup && product.ModuleType == examcode.ModuleFull {
			// Full course replaces the singles it covers.
			continue
		}
		if sameGroup && p.ModuleType == examcode.ModuleFull {
			// Picking a single after Full narrows the choice back down.
			continue
		}
		kept = append(kept, existing)
	}
	s.Codes = append(kept, code)
	m.collapseCompleteGroups(s)
	return nil
}

// DeselectProduct removes a code; unknown codes are ignored.
func (m Machine) DeselectProduct(s *State, code string) {
	s.removeCode(code)
}

// collapseCompleteGroups replaces a complete set of required single modules
// with the group's Full code, mirroring the pricing promotion so the shown
// selection and the priced selection agree.
func (m Machine) collapseCompleteGroups(s *State) {
	type group struct {
		level    string
		location string
		modules  map[examcode.ModuleType]bool
	}
	groups := make(map[string]*group)
	for _, code := range s.Codes {
		p, ok := m.Catalog.ProductByCode(code)
		if !ok || p.ModuleType == examcode.ModuleFull {
			continue
		}
		key := p.Level + examcode.Separator + p.Location
		g, ok := groups[key]
		if !ok {
			g = &group{level: p.Level, location: p.Location, modules: make(map[examcode.ModuleType]bool)}
			groups[key] = g
		}
		g.modules[p.ModuleType] = true
	}
	for _, g := range groups {
		required := examcode.RequiredModules(g.level)
		if len(required) == 0 {
			continue
		}
		complete := true
		for _, mod := range required {
			if !g.modules[mod] {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		fullCode, ok := m.Catalog.FullCode(g.level, g.location)
		if !ok {
			continue
		}
		kept := s.Codes[:0]
		for _, code := range s.Codes {
			p, pok := m.Catalog.ProductByCode(code)
			if pok && p.Level == g.level && p.Location == g.location {
				continue
			}
			kept = append(kept, code)
		}
		s.Codes = append(kept, fullCode)
	}
}

// ApplyCoupon validates the code for the currently selected session and, on a
// positive result, attaches the coupon. The coupon is attached only when its
// session still matches the selection at completion time, so a validation
// finishing after a session switch cannot attach a stale coupon.
func (m Machine) ApplyCoupon(ctx context.Context, s *State, validator CouponValidator, code string) (coupon.Result, error) {
	if s.SessionID == "" {
		return coupon.Result{Valid: false, Message: "请先选择考试场次"}, nil
	}
	sessionAtRequest := s.SessionID
	result, err := validator.Validate(ctx, code, sessionAtRequest)
	if err != nil {
		return coupon.Result{}, err
	}
	if !result.Valid {
		return result, nil
	}
	if s.SessionID != sessionAtRequest || (result.Coupon != nil && result.Coupon.SessionID != s.SessionID) {
		m.Logger.Warn().Str("session_id", s.SessionID).Msg("discarding coupon validated for a different session")
		return coupon.Result{Valid: false, Message: "专属代码无效或不适用于此场次"}, nil
	}
	s.Coupon = result.Coupon
	return result, nil
}

// RemoveCoupon detaches any applied coupon.
func (m Machine) RemoveCoupon(s *State) {
	s.Coupon = nil
}
