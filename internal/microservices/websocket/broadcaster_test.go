package websocket

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscbridge/internal/metrics"
	"oscbridge/internal/osc"
)

func seqMessage(n int) *osc.Message {
	return osc.NewMessage("/seq", osc.Int32(n))
}

func seqFrame(n int) string {
	return fmt.Sprintf(`{"address":"/seq","args":[{"type":"i","value":%d}]}`, n)
}

func drain(c *Client) []string {
	return popAll(c.queue)
}

func TestBroadcaster_FanOutInOrder(t *testing.T) {
	const messages, clients = 100, 5

	m := metrics.New()
	hub := NewHub(testLogger(), m)
	b := NewBroadcaster(hub, false, testLogger(), m)

	open := make([]*Client, clients)
	for i := range open {
		open[i] = newOpenClient(t, hub, m, messages)
	}

	for i := 0; i < messages; i++ {
		require.NoError(t, b.Deliver(seqMessage(i)))
	}

	want := make([]string, messages)
	for i := range want {
		want[i] = seqFrame(i)
	}
	for _, c := range open {
		assert.Equal(t, want, drain(c), "client %s", c.ID)
	}
	assert.Equal(t, float64(messages), testutil.ToFloat64(m.MessagesRelayed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueDrops))
}

func TestBroadcaster_OverflowIsPerClient(t *testing.T) {
	m := metrics.New()
	hub := NewHub(testLogger(), m)
	b := NewBroadcaster(hub, false, testLogger(), m)

	slow := newOpenClient(t, hub, m, 4)
	fast := newOpenClient(t, hub, m, 64)

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Deliver(seqMessage(i)))
	}

	assert.Equal(t, []string{seqFrame(6), seqFrame(7), seqFrame(8), seqFrame(9)}, drain(slow))

	all := make([]string, 10)
	for i := range all {
		all[i] = seqFrame(i)
	}
	assert.Equal(t, all, drain(fast))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.QueueDrops))
}

func TestBroadcaster_SkipsClientsNotOpen(t *testing.T) {
	m := metrics.New()
	hub := NewHub(testLogger(), m)
	b := NewBroadcaster(hub, false, testLogger(), m)

	pending := newHandshakenClient(hub, m, 8) // never registered
	closed := newOpenClient(t, hub, m, 8)
	closed.Close("gone")
	open := newOpenClient(t, hub, m, 8)

	require.NoError(t, b.Deliver(seqMessage(1)))

	assert.Empty(t, drain(pending))
	assert.Empty(t, drain(closed))
	assert.Equal(t, []string{seqFrame(1)}, drain(open))
}

func TestBroadcaster_NoClients(t *testing.T) {
	m := metrics.New()
	b := NewBroadcaster(NewHub(testLogger(), m), false, testLogger(), m)

	assert.NoError(t, b.Deliver(seqMessage(1)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesRelayed))
}

func TestBroadcaster_CloseDuringDelivery(t *testing.T) {
	const messages = 1000

	m := metrics.New()
	hub := NewHub(testLogger(), m)
	b := NewBroadcaster(hub, false, testLogger(), m)

	var keep, leave []*Client
	for i := 0; i < 10; i++ {
		c := newOpenClient(t, hub, m, messages)
		if i%2 == 0 {
			keep = append(keep, c)
		} else {
			leave = append(leave, c)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < messages; i++ {
			b.Deliver(seqMessage(i))
		}
	}()

	var wg sync.WaitGroup
	for _, c := range leave {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			c.Close("left")
		}(c)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery stalled while clients were closing")
	}

	for _, c := range keep {
		frames := drain(c)
		require.Len(t, frames, messages)
		assert.Equal(t, seqFrame(0), frames[0])
		assert.Equal(t, seqFrame(messages-1), frames[messages-1])
	}
	for _, c := range leave {
		frames := drain(c)
		assert.LessOrEqual(t, len(frames), messages)
		// whatever arrived before the close is an in-order prefix
		for i, f := range frames {
			assert.Equal(t, seqFrame(i), f)
		}
	}
	assert.Equal(t, len(keep), hub.Count())
}

func TestBroadcaster_DebugLogsPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := metrics.New()
	hub := NewHub(testLogger(), m)
	newOpenClient(t, hub, m, 1)

	require.NoError(t, NewBroadcaster(hub, true, logger, m).Deliver(seqMessage(42)))
	assert.Contains(t, buf.String(), "osc_message_relayed")
	assert.Contains(t, buf.String(), "address=/seq")
	assert.Contains(t, buf.String(), "clients=1")

	buf.Reset()
	require.NoError(t, NewBroadcaster(hub, false, logger, m).Deliver(seqMessage(43)))
	assert.NotContains(t, buf.String(), "osc_message_relayed")
}

// BenchmarkBroadcaster_Deliver measures one serialize plus fan-out to 20
// viewers. Queues are kept small so the drop-oldest path is exercised too.
func BenchmarkBroadcaster_Deliver(b *testing.B) {
	m := metrics.New()
	hub := NewHub(testLogger(), m)
	for i := 0; i < 20; i++ {
		c := newHandshakenClient(hub, m, 64)
		if err := hub.Register(c); err != nil {
			b.Fatal(err)
		}
	}
	br := NewBroadcaster(hub, false, testLogger(), m)
	msg := osc.NewMessage("/bench", osc.Int32(1), osc.Float32(2.5), osc.String("level"))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := br.Deliver(msg); err != nil {
			b.Fatal(err)
		}
	}
}
