package client

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

// wss_client.go = connects to a bridge as a viewer and prints what it relays.

// ListenOptions control how the viewer trusts the bridge certificate.
type ListenOptions struct {
	CertFile string // PEM exported by the bridge; trusted instead of system roots
	Insecure bool   // skip certificate verification entirely
}

// Relayed is one message as the bridge sends it.
type Relayed struct {
	Address string `json:"address"`
	Args    []struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"args"`
}

// TLSConfig builds the client TLS configuration for opts.
func TLSConfig(opts ListenOptions) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.Insecure {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}
	if opts.CertFile != "" {
		data, err := os.ReadFile(opts.CertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificate found in %s", opts.CertFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// Listen connects to url and prints every relayed message until Ctrl+C or
// the bridge goes away.
func Listen(url string, opts ListenOptions) error {
	tlsConfig, err := TLSConfig(opts)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: 10 * time.Second,
	}

	fmt.Printf("\n🔌 Connecting to %s...\n", url)
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	fmt.Printf("✅ Connected! Waiting for OSC messages (Ctrl+C to exit)\n\n")

	// Channel for interrupt signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	// Goroutine to receive messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Println("Read error:", err)
				}
				return
			}
			PrintMessage(data)
		}
	}()

	select {
	case <-done:
		color.Yellow("🔔 bridge closed the connection")
	case <-interrupt:
		log.Println("Closing connection...")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	return nil
}

// FormatMessage renders one relayed frame as "/address ,tags arg arg".
func FormatMessage(data []byte) (string, error) {
	var msg Relayed
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", err
	}
	var tags, values strings.Builder
	tags.WriteByte(',')
	for _, arg := range msg.Args {
		tags.WriteString(arg.Type)
		values.WriteByte(' ')
		values.Write(arg.Value)
	}
	return msg.Address + " " + tags.String() + values.String(), nil
}

func PrintMessage(data []byte) {
	line, err := FormatMessage(data)
	if err != nil {
		color.HiBlack("%s", data)
		return
	}
	color.Cyan("%s", line)
}
