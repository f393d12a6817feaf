package device

import (
	"errors"
	"testing"

	"github.com/frostyard/glacierctl/internal/hid"
	"github.com/frostyard/glacierctl/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	writes     int
	failWrites int // fail this many writes before succeeding
	closed     bool
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.writes++
	if d.failWrites > 0 {
		d.failWrites--
		return 0, errors.New("endpoint stalled")
	}
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

type fakeManager struct {
	infos    []hid.Info
	listErr  error
	opens    int
	openErrs []error // consumed per Open call, nil means success
	failNext []int   // failWrites for each opened device, consumed per Open
	devices  []*fakeDevice
}

func (m *fakeManager) List() ([]hid.Info, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.infos, nil
}

func (m *fakeManager) Open(_ hid.Info) (hid.Device, error) {
	m.opens++
	if len(m.openErrs) > 0 {
		err := m.openErrs[0]
		m.openErrs = m.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	fails := 0
	if len(m.failNext) > 0 {
		fails = m.failNext[0]
		m.failNext = m.failNext[1:]
	}
	d := &fakeDevice{failWrites: fails}
	m.devices = append(m.devices, d)
	return d, nil
}

var pumpID = ID{Vendor: 0xAA88, Product: 0x8666}

func pumpInfo() hid.Info {
	return hid.Info{Path: "/dev/hidraw3", VendorID: 0xAA88, ProductID: 0x8666, Product: "HWT700PT"}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("aa88:8666")
	require.NoError(t, err)
	assert.Equal(t, pumpID, id)
	assert.Equal(t, "aa88:8666", id.String())

	for _, bad := range []string{"", "aa88", "aa88:", ":8666", "zz:11", "aa88:8666:1", "12345:1"} {
		_, err := ParseID(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestBroadcastConnectsAndWrites(t *testing.T) {
	m := &fakeManager{infos: []hid.Info{pumpInfo()}}
	p := NewPool(m, []ID{pumpID})

	res := p.Broadcast(report.HWT700PT.Encode(50))

	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 1, res.Open)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, m.devices, 1)
	assert.Equal(t, 1, m.devices[0].writes)
	// Report ID prefix plus the 10 payload bytes
	assert.Equal(t, StateOpen, p.sessions[0].State())
	assert.NotEmpty(t, p.sessions[0].Token())
}

func TestBroadcastDeviceMissing(t *testing.T) {
	m := &fakeManager{} // nothing enumerable
	p := NewPool(m, []ID{pumpID})

	for i := 0; i < 3; i++ {
		res := p.Broadcast(report.HWT700PT.Encode(50))
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 0, res.Written)
	}
	assert.Equal(t, 0, m.opens)
	assert.Equal(t, StateClosed, p.sessions[0].State())
}

func TestWriteFailureReconnectsOnceAndRetries(t *testing.T) {
	m := &fakeManager{
		infos:    []hid.Info{pumpInfo()},
		failNext: []int{1, 0}, // first device fails its only write, second is healthy
	}
	p := NewPool(m, []ID{pumpID})

	res := p.Broadcast(report.HWT700PT.Encode(61))

	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 2, m.opens, "exactly one reconnect after the write failure")
	require.Len(t, m.devices, 2)
	assert.Equal(t, 1, m.devices[0].writes)
	assert.True(t, m.devices[0].closed, "failed session must be closed")
	assert.Equal(t, 1, m.devices[1].writes, "one retry after the reconnect")
	assert.Equal(t, StateOpen, p.sessions[0].State())
}

func TestWriteFailureThenReconnectFailure(t *testing.T) {
	m := &fakeManager{
		infos:    []hid.Info{pumpInfo()},
		openErrs: []error{nil, errors.New("access denied")},
		failNext: []int{1},
	}
	p := NewPool(m, []ID{pumpID})

	res := p.Broadcast(report.HWT700PT.Encode(61))

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, 2, m.opens, "one connect, one failed reconnect, no loop")
	require.Len(t, m.devices, 1)
	assert.Equal(t, 1, m.devices[0].writes, "no write attempted after the failed reconnect")
	assert.Equal(t, StateClosed, p.sessions[0].State())
}

func TestWriteFailurePersistingAfterReconnect(t *testing.T) {
	m := &fakeManager{
		infos:    []hid.Info{pumpInfo()},
		failNext: []int{1, 1},
	}
	p := NewPool(m, []ID{pumpID})

	res := p.Broadcast(report.HWT700PT.Encode(61))

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, m.opens)
	require.Len(t, m.devices, 2)
	assert.Equal(t, 1, m.devices[1].writes, "retry write happens once, then the tick gives up")
	assert.Equal(t, StateClosed, p.sessions[0].State())

	// Next tick starts over with a fresh connect
	res = p.Broadcast(report.HWT700PT.Encode(62))
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 3, m.opens)
}

func TestBroadcastIndependentSessions(t *testing.T) {
	second := ID{Vendor: 0xAA88, Product: 0x8667}
	m := &fakeManager{infos: []hid.Info{pumpInfo()}} // only the first device exists
	p := NewPool(m, []ID{pumpID, second})

	res := p.Broadcast(report.HWT700PT.Encode(70))

	assert.Equal(t, 1, res.Written, "missing second device must not block the first")
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, StateOpen, p.sessions[0].State())
	assert.Equal(t, StateClosed, p.sessions[1].State())
}

func TestSessionTokenRotatesOnReconnect(t *testing.T) {
	m := &fakeManager{
		infos:    []hid.Info{pumpInfo()},
		failNext: []int{0, 0},
	}
	p := NewPool(m, []ID{pumpID})

	p.Broadcast(report.HWT700PT.Encode(50))
	first := p.sessions[0].Token()

	// Force a failure so the next tick reconnects
	m.devices[0].failWrites = 1
	p.Broadcast(report.HWT700PT.Encode(51))
	second := p.sessions[0].Token()

	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second, "each connection gets its own session token")
}

func TestClose(t *testing.T) {
	m := &fakeManager{infos: []hid.Info{pumpInfo()}}
	p := NewPool(m, []ID{pumpID})
	p.Broadcast(report.HWT700PT.Encode(50))

	p.Close()

	assert.Equal(t, StateClosed, p.sessions[0].State())
	assert.True(t, m.devices[0].closed)
}

func TestListFailureIsNotFound(t *testing.T) {
	m := &fakeManager{listErr: errors.New("enumeration failed")}
	s := &Session{id: pumpID}

	err := s.connect(m)
	require.Error(t, err)
	assert.Equal(t, StateClosed, s.State())
}
