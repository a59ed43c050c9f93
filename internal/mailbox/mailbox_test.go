package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsf-go/qsf/internal/router"
)

func newTestRouter(t *testing.T) *router.Router {
	t.Helper()
	reg := prometheus.NewRegistry()
	return router.New(1<<20, nil, router.NewMetrics(reg))
}

func TestSendRecvRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	defer r.Close()
	go r.Run(context.Background())

	a, err := New(r, "a", InfiniteTimeout, 1<<20, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	b, err := New(r, "b", InfiniteTimeout, 1<<20, nil, nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Send("b", []byte("ping")))

	var from string
	var payload []byte
	n, err := b.Recv(true, func(f string, p []byte) {
		from = f
		payload = append([]byte(nil), p...)
	})
	require.NoError(t, err)
	assert.Equal(t, len("ping"), n)
	assert.Equal(t, "a", from)
	assert.Equal(t, []byte("ping"), payload)
}

func TestNonBlockingRecvOnEmptyMailbox(t *testing.T) {
	r := newTestRouter(t)
	defer r.Close()
	go r.Run(context.Background())

	m, err := New(r, "solo", InfiniteTimeout, 1<<20, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	called := false
	n, err := m.Recv(false, func(string, []byte) { called = true })
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, called)
}

func TestBlockingRecvTimesOut(t *testing.T) {
	r := newTestRouter(t)
	defer r.Close()
	go r.Run(context.Background())

	m, err := New(r, "solo", 20, 1<<20, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	start := time.Now()
	n, err := m.Recv(true, func(string, []byte) {})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	r := newTestRouter(t)
	defer r.Close()
	go r.Run(context.Background())

	m, err := New(r, "a", InfiniteTimeout, 8, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	err = m.Send("b", make([]byte, 100))
	assert.ErrorIs(t, err, router.ErrMessageTooLarge)
}

func TestOrderingFromSameSender(t *testing.T) {
	r := newTestRouter(t)
	defer r.Close()
	go r.Run(context.Background())

	a, err := New(r, "a", InfiniteTimeout, 1<<20, nil, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := New(r, "b", InfiniteTimeout, 1<<20, nil, nil)
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Send("b", []byte{byte(i)}))
	}

	var received []byte
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		_, err := b.Recv(true, func(_ string, p []byte) {
			mu.Lock()
			received = append(received, p[0])
			mu.Unlock()
		})
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, byte(i), received[i])
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestRouter(t)
	defer r.Close()
	go r.Run(context.Background())

	m, err := New(r, "a", InfiniteTimeout, 1<<20, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
