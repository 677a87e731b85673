package udp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscbridge/internal/metrics"
	"oscbridge/internal/osc"
	"oscbridge/internal/shared"
)

// recordingHandler collects delivered messages for assertions
type recordingHandler struct {
	mu       sync.Mutex
	messages []*osc.Message
	err      error
}

func (h *recordingHandler) Deliver(msg *osc.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return h.err
}

func (h *recordingHandler) snapshot() []*osc.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*osc.Message(nil), h.messages...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, handler MessageHandler) (*Server, *metrics.Metrics, *net.UDPConn) {
	t.Helper()

	m := metrics.New()
	server, err := NewServer("127.0.0.1:0", handler, quietLogger(), m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()

	client, err := net.DialUDP("udp", nil, server.Addr())
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		cancel()
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return server, m, client
}

func marshal(t *testing.T, address string, args ...interface{}) []byte {
	t.Helper()
	msg := goosc.NewMessage(address)
	msg.Append(args...)
	data, err := msg.MarshalBinary()
	require.NoError(t, err)
	return data
}

func TestServer_DeliversInReceiveOrder(t *testing.T) {
	handler := &recordingHandler{}
	_, m, client := startServer(t, handler)

	const n = 20
	for i := 0; i < n; i++ {
		_, err := client.Write(marshal(t, "/seq", int32(i)))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(handler.snapshot()) == n }, 2*time.Second, 10*time.Millisecond)

	for i, msg := range handler.snapshot() {
		assert.Equal(t, "/seq", msg.Address)
		require.Len(t, msg.Args, 1)
		assert.Equal(t, osc.Int32(i), msg.Args[0])
	}
	assert.Equal(t, float64(n), testutil.ToFloat64(m.DatagramsReceived))
	assert.Equal(t, float64(n), testutil.ToFloat64(m.DatagramsDecoded))
}

func TestServer_DropsUndecodableDatagrams(t *testing.T) {
	handler := &recordingHandler{}
	server, m, client := startServer(t, handler)

	junk := [][]byte{
		[]byte("#bundle\x00\x00\x00\x00\x00\x00\x00\x00\x01"),
		[]byte("#bundle\x00"),
		[]byte("not osc at all"),
		[]byte("/x\x00\x00,z\x00\x00"),
		[]byte("/trunc\x00\x00,i\x00\x00\x00\x01"),
	}
	for _, d := range junk {
		_, err := client.Write(d)
		require.NoError(t, err)
	}
	_, err := client.Write(marshal(t, "/ok", "after junk"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(handler.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	msg := handler.snapshot()[0]
	assert.Equal(t, "/ok", msg.Address)
	assert.Equal(t, []osc.Argument{osc.String("after junk")}, msg.Args)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("bundle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("unknown_type")))
	assert.Equal(t, 1, server.SenderCount())
}

func TestServer_HandlerErrorDoesNotStopLoop(t *testing.T) {
	handler := &recordingHandler{err: errors.New("relay unavailable")}
	_, _, client := startServer(t, handler)

	for i := 0; i < 3; i++ {
		_, err := client.Write(marshal(t, "/still/running", int32(i)))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return len(handler.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewServer_BindFailed(t *testing.T) {
	first, err := NewServer("127.0.0.1:0", &recordingHandler{}, quietLogger(), metrics.New())
	require.NoError(t, err)
	defer first.Shutdown()

	second, err := NewServer(first.Addr().String(), &recordingHandler{}, quietLogger(), metrics.New())
	assert.Nil(t, second)
	assert.ErrorIs(t, err, shared.ErrBindFailed)
}

func TestServer_ShutdownIsIdempotent(t *testing.T) {
	server, err := NewServer("127.0.0.1:0", &recordingHandler{}, quietLogger(), metrics.New())
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- server.Serve(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	assert.NoError(t, server.Shutdown())
	assert.NoError(t, server.Shutdown())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestDecodeErrorKind(t *testing.T) {
	_, bundleErr := osc.Decode([]byte("#bundle"))
	_, unknownErr := osc.Decode([]byte("/x\x00\x00,z\x00\x00"))
	_, malformedErr := osc.Decode([]byte("/x"))

	assert.Equal(t, "bundle", decodeErrorKind(bundleErr))
	assert.Equal(t, "unknown_type", decodeErrorKind(unknownErr))
	assert.Equal(t, "malformed", decodeErrorKind(malformedErr))
}
