// ABOUTME: Tests running a facility under a real discovery session
// ABOUTME: Checks held-back browse results still beat the session timeout
package facility

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerThenListen reports one service right away and keeps listening for
// the rest of the query window, like a quiet network
func answerThenListen(se *mdns.ServiceEntry) queryFunc {
	return func(ctx context.Context, params *mdns.QueryParam) error {
		select {
		case params.Entries <- se:
		case <-ctx.Done():
			return nil
		}
		select {
		case <-time.After(params.Timeout):
		case <-ctx.Done():
		}
		return nil
	}
}

func TestSingleAnswerBeatsSessionTimeout(t *testing.T) {
	const timeout = 200 * time.Millisecond

	loop := discovery.NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	// a window longer than the timeout is what a careless config asks for
	m := NewMDNS(loop, Options{BrowseWindow: 500 * time.Millisecond}.Bounded(timeout))
	defer m.Close()
	m.query = answerThenListen(&mdns.ServiceEntry{
		Name:   "web._http._tcp.local.",
		Host:   "web.local.",
		AddrV4: net.IPv4(10, 0, 0, 5),
		Port:   80,
	})

	noServices := make(chan struct{}, 1)
	finished := make(chan []discovery.Handle, 1)
	resolved := make(chan discovery.ServiceRecord, 1)

	session := discovery.NewSession(m, discovery.Config{
		Timeout:              timeout,
		Dispatcher:           loop,
		OnNoServicesFound:    func() { noServices <- struct{}{} },
		OnResolutionFinished: func(discovered []discovery.Handle) { finished <- discovered },
	})

	var startErr error
	require.NoError(t, loop.Call(func() {
		startErr = session.Start(discovery.ServiceHTTP, "", func(rec discovery.ServiceRecord) {
			resolved <- rec
		})
	}))
	require.NoError(t, startErr)

	select {
	case discovered := <-finished:
		require.Len(t, discovered, 1)
		assert.Equal(t, "web", discovered[0].Name())
	case <-noServices:
		t.Fatal("service answered at once but the session reported no services")
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}

	select {
	case rec := <-resolved:
		assert.Equal(t, "10.0.0.5:80", rec.Address)
	default:
		t.Fatal("service was not resolved")
	}

	// the disarmed timer must stay quiet after the session finished
	select {
	case <-noServices:
		t.Fatal("no services reported after a finished search")
	case <-time.After(2 * timeout):
	}
}
