// Package device owns the USB HID session lifecycle: enumerate, open,
// write, detect failure, reconnect. Every configured device gets its own
// session state machine; a failure in one never stalls the others.
package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/frostyard/glacierctl/internal/errors"
	"github.com/frostyard/glacierctl/internal/hid"
	"github.com/frostyard/glacierctl/internal/logger"
	"github.com/frostyard/glacierctl/internal/report"
	"github.com/google/uuid"
)

// ID identifies a device model by its USB vendor/product pair.
type ID struct {
	Vendor  uint16
	Product uint16
}

// ParseID parses a "vvvv:pppp" hex pair.
func ParseID(s string) (ID, error) {
	errFactory := errors.New()

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ID{}, errFactory.WithData(ErrInvalidID, s)
	}
	vendor, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return ID{}, errFactory.WithData(ErrInvalidID, s)
	}
	product, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return ID{}, errFactory.WithData(ErrInvalidID, s)
	}

	return ID{Vendor: uint16(vendor), Product: uint16(product)}, nil
}

func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

// State is the session state machine position. A session is either fully
// Open and usable for writes, or fully Closed; Opening only exists inside a
// connect call.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateOpening:
		return "opening"
	default:
		return "closed"
	}
}

// Session is the live binding to one USB HID device.
type Session struct {
	id              ID
	token           string // per-connection uuid, for log/telemetry correlation
	state           State
	dev             hid.Device
	notifiedMissing bool
}

func (s *Session) State() State { return s.state }
func (s *Session) Token() string { return s.token }

// connect enumerates matching devices and opens the first one exclusively.
func (s *Session) connect(manager hid.Manager) error {
	errFactory := errors.New()

	s.state = StateOpening

	infos, err := manager.List()
	if err != nil {
		s.state = StateClosed
		return errFactory.Wrap(ErrNotFound, err)
	}

	for _, info := range infos {
		if info.VendorID != s.id.Vendor || info.ProductID != s.id.Product {
			continue
		}

		dev, err := manager.Open(info)
		if err != nil {
			s.state = StateClosed
			return errFactory.Wrap(ErrOpenFailed, err)
		}

		s.dev = dev
		s.token = uuid.NewString()
		s.state = StateOpen
		s.notifiedMissing = false
		logger.Info().
			Str("device", s.id.String()).
			Str("product", info.Product).
			Str("session", s.token).
			Msg("Device connected")

		return nil
	}

	s.state = StateClosed
	return errFactory.WithData(ErrNotFound, s.id.String())
}

// send writes one report. Any failure closes the session.
func (s *Session) send(r report.Report) error {
	errFactory := errors.New()

	// Leading zero byte: the pump does not use numbered reports
	buf := make([]byte, 0, report.Size+1)
	buf = append(buf, 0)
	buf = append(buf, r[:]...)

	n, err := s.dev.Write(buf)
	if err != nil || n <= 0 {
		s.close()
		if err == nil {
			err = fmt.Errorf("short write: %d bytes", n)
		}
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (s *Session) close() {
	if s.dev != nil {
		if err := s.dev.Close(); err != nil {
			logger.Debug().
				Str("device", s.id.String()).
				AnErr("error", err).
				Msg("Close after failure")
		}
		s.dev = nil
	}
	if s.state == StateOpen {
		logger.Info().
			Str("device", s.id.String()).
			Str("session", s.token).
			Msg("Device disconnected")
	}
	s.state = StateClosed
}

// Result summarizes one broadcast pass over the pool.
type Result struct {
	Open    int // sessions open after the pass
	Written int // reports delivered
	Failed  int // sessions that could not be written this tick
}

// Status is a read-only snapshot of one session, for the status surface.
type Status struct {
	Device  string `json:"device"`
	State   string `json:"state"`
	Session string `json:"session,omitempty"`
}

// Pool drives a set of independent per-device sessions.
type Pool struct {
	manager  hid.Manager
	sessions []*Session
	mu       sync.Mutex
}

func NewPool(manager hid.Manager, ids []ID) *Pool {
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, &Session{id: id})
	}

	return &Pool{manager: manager, sessions: sessions}
}

// Broadcast delivers one report to every session. A closed session gets one
// connect attempt; an open session that fails its write gets exactly one
// reconnect followed by one retry, then waits for the next tick. Errors
// never escape to the caller.
func (p *Pool) Broadcast(r report.Report) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res Result
	for _, s := range p.sessions {
		if p.deliver(s, r) {
			res.Written++
		} else {
			res.Failed++
		}
		if s.state == StateOpen {
			res.Open++
		}
	}

	return res
}

func (p *Pool) deliver(s *Session, r report.Report) bool {
	if s.state != StateOpen {
		if err := s.connect(p.manager); err != nil {
			p.notifyMissing(s, err)
			return false
		}
	}

	if err := s.send(r); err == nil {
		return true
	}

	// One reconnect per tick, never a loop
	logger.Warn().
		Str("device", s.id.String()).
		Msg("Write failed, attempting reconnect")
	if err := s.connect(p.manager); err != nil {
		p.notifyMissing(s, err)
		return false
	}
	if err := s.send(r); err != nil {
		logger.Warn().
			Str("device", s.id.String()).
			AnErr("error", err).
			Msg("Write failed after reconnect, giving up until next tick")
		return false
	}

	return true
}

// notifyMissing logs an absent device once, not on every tick.
func (p *Pool) notifyMissing(s *Session, err error) {
	if s.notifiedMissing {
		return
	}
	s.notifiedMissing = true
	logger.Warn().
		Str("device", s.id.String()).
		AnErr("error", err).
		Msg("Device not available, will keep retrying")
}

// Statuses reports the state of every session.
func (p *Pool) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.sessions))
	for _, s := range p.sessions {
		st := Status{Device: s.id.String(), State: s.state.String()}
		if s.state == StateOpen {
			st.Session = s.token
		}
		out = append(out, st)
	}

	return out
}

// Close releases every open session.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.sessions {
		s.close()
	}
}
