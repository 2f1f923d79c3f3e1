// ABOUTME: Tests for backend selection and advertisement helpers
// ABOUTME: Covers New, Advertise validation and local address listing
package facility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackends(t *testing.T) {
	q := make(queue, 1)

	f, err := New("", q, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MDNS{}, f)
	require.NoError(t, f.Close())

	f, err = New(BackendZeroconf, q, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Zeroconf{}, f)
	require.NoError(t, f.Close())

	_, err = New("avahi", q, Options{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultBrowseWindow, o.BrowseWindow)
	assert.NotNil(t, o.Logger)
}

func TestOptionsBounded(t *testing.T) {
	tests := []struct {
		name    string
		window  time.Duration
		timeout time.Duration
		want    time.Duration
	}{
		{"shorter window kept", time.Second, 10 * time.Second, time.Second},
		{"default window below timeout", 0, 10 * time.Second, DefaultBrowseWindow},
		{"default window reaching timeout", 0, 2 * time.Second, time.Second},
		{"equal window halved", 4 * time.Second, 4 * time.Second, 2 * time.Second},
		{"longer window halved", 500 * time.Millisecond, 200 * time.Millisecond, 100 * time.Millisecond},
		{"no timeout leaves window", 5 * time.Second, 0, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Options{BrowseWindow: tt.window}.Bounded(tt.timeout)
			assert.Equal(t, tt.want, got.BrowseWindow)
		})
	}
}

func TestAdvertiseValidation(t *testing.T) {
	_, err := Advertise(AdvertiseConfig{Service: "_http._tcp.", Port: 0})
	assert.Error(t, err)

	_, err = Advertise(AdvertiseConfig{Service: "_http._tcp.", Port: 70000})
	assert.Error(t, err)

	_, err = Advertise(AdvertiseConfig{Port: 8080})
	assert.Error(t, err)
}

func TestAdvertiserShutdownIdempotent(t *testing.T) {
	var a Advertiser
	assert.NoError(t, a.Shutdown())
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	require.NoError(t, err)
	assert.NotNil(t, ips)

	for _, ip := range ips {
		assert.NotNil(t, ip.To4())
		assert.False(t, ip.IsLoopback())
	}
}
