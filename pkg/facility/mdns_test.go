// ABOUTME: Tests for the hashicorp/mdns facility
// ABOUTME: Uses an injected query function instead of the network
package facility

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foreignHandle struct{}

func (foreignHandle) Name() string       { return "foreign" }
func (foreignHandle) RawAddress() []byte { return nil }
func (foreignHandle) Port() int          { return 0 }

func answering(entries ...*mdns.ServiceEntry) queryFunc {
	return func(ctx context.Context, params *mdns.QueryParam) error {
		for _, e := range entries {
			select {
			case params.Entries <- e:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	}
}

func TestMDNSBrowse(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{BrowseWindow: time.Second})
	defer m.Close()

	var got *mdns.QueryParam
	answer := answering(
		&mdns.ServiceEntry{Name: "web._http._tcp.local.", Host: "web.local.", AddrV4: net.IPv4(10, 0, 0, 5), Port: 80},
		&mdns.ServiceEntry{Name: "nas._http._tcp.local.", Host: "nas.local.", Port: 5000},
		&mdns.ServiceEntry{Name: "web._http._tcp.local.", Host: "web.local.", AddrV4: net.IPv4(10, 0, 0, 5), Port: 80},
	)
	m.query = func(ctx context.Context, params *mdns.QueryParam) error {
		got = params
		return answer(ctx, params)
	}

	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))
	q.run(t, 2)
	q.idle(t)

	assert.Equal(t, []discoveredEvent{
		{name: "web", moreComing: true},
		{name: "nas", moreComing: false},
	}, rec.discovered)

	require.NotNil(t, got)
	assert.Equal(t, "_http._tcp", got.Service)
	assert.Equal(t, "local", got.Domain)
	assert.Equal(t, time.Second, got.Timeout)
	assert.True(t, got.DisableIPv6)
}

func TestMDNSBrowseFailure(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{})
	defer m.Close()

	m.query = func(ctx context.Context, params *mdns.QueryParam) error {
		return errors.New("no multicast")
	}

	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))
	q.run(t, 1)

	require.Len(t, rec.browseFails, 1)
	assert.Contains(t, rec.browseFails[0].Error(), "no multicast")
	assert.Empty(t, rec.discovered)
}

func TestMDNSResolveWithAddress(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{})
	defer m.Close()

	m.query = answering(&mdns.ServiceEntry{Name: "web._http._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 5), Port: 80})

	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))
	q.run(t, 1)

	m.query = func(ctx context.Context, params *mdns.QueryParam) error {
		t.Error("no lookup expected for an entry with an address")
		return nil
	}

	m.Resolve(rec.handles[0], time.Second)
	q.run(t, 1)

	require.Len(t, rec.resolved, 1)
	assert.Equal(t, []byte{10, 0, 0, 5}, rec.resolved[0].RawAddress())
}

func TestMDNSResolveLooksUpMissingAddress(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{})
	defer m.Close()

	m.query = answering(&mdns.ServiceEntry{Name: "nas._http._tcp.local.", Port: 5000})

	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))
	q.run(t, 1)

	m.query = answering(
		&mdns.ServiceEntry{Name: "other._http._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 9), Port: 80},
		&mdns.ServiceEntry{Name: "nas._http._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 7), Port: 5000},
	)

	m.Resolve(rec.handles[0], time.Second)
	q.run(t, 1)

	require.Len(t, rec.resolved, 1)
	assert.Equal(t, "nas", rec.resolved[0].Name())
	assert.Equal(t, []byte{10, 0, 0, 7}, rec.resolved[0].RawAddress())
	assert.Equal(t, 5000, rec.resolved[0].Port())
}

func TestMDNSResolveFails(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{})
	defer m.Close()

	m.query = answering(&mdns.ServiceEntry{Name: "nas._http._tcp.local.", Port: 5000})

	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))
	q.run(t, 1)

	m.Resolve(rec.handles[0], 50*time.Millisecond)
	q.run(t, 1)

	assert.Empty(t, rec.resolved)
	assert.ErrorIs(t, rec.failed["nas"], ErrNotResolved)
}

func TestMDNSResolveForeignHandle(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{})
	defer m.Close()

	// no browse yet, nobody to tell
	m.Resolve(foreignHandle{}, time.Second)
	q.idle(t)

	m.query = answering()
	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))

	m.Resolve(foreignHandle{}, time.Second)
	q.run(t, 1)

	assert.ErrorIs(t, rec.failed["foreign"], ErrForeignHandle)
}

func TestMDNSCancelBrowse(t *testing.T) {
	q := make(queue, 16)
	m := NewMDNS(q, Options{})
	defer m.Close()

	sent := make(chan struct{})
	m.query = func(ctx context.Context, params *mdns.QueryParam) error {
		params.Entries <- &mdns.ServiceEntry{Name: "web._http._tcp.local.", Port: 80}
		close(sent)
		<-ctx.Done()
		return ctx.Err()
	}

	rec := newEventRecorder()
	require.NoError(t, m.Browse("_http._tcp.", "local.", rec))
	<-sent
	m.CancelBrowse()

	q.idle(t)
	assert.Empty(t, rec.discovered)
	assert.Empty(t, rec.browseFails)
}

func TestMDNSClosed(t *testing.T) {
	m := NewMDNS(make(queue, 1), Options{})
	require.NoError(t, m.Close())

	err := m.Browse("_http._tcp.", "local.", newEventRecorder())
	assert.ErrorIs(t, err, ErrClosed)
}
