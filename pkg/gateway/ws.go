package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/qsf-go/qsf/internal/framework"
	"github.com/qsf-go/qsf/internal/mailbox"
)

// WSGateway bridges WebSocket clients onto the same mailbox addressing
// scheme as Gateway. WebSocket messages are already length-delimited
// by the transport, so each message carries an envelope directly,
// without the TCP gateway's outer length/checksum packet framing.
type WSGateway struct {
	fw       *framework.Framework
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWS constructs a WSGateway wired to fw.
func NewWS(fw *framework.Framework, cfg Config, logger *slog.Logger) *WSGateway {
	if logger == nil {
		logger = fw.Logger
	}
	return &WSGateway{
		fw:     fw,
		cfg:    cfg,
		logger: logger.With("component", "ws_gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  MaxPacketSize,
			WriteBufferSize: MaxPacketSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and bridges it exactly like
// Gateway.handleConn, except the first message (rather than a framed
// packet) declares the connection's identity.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	_, identityMsg, err := conn.ReadMessage()
	if err != nil {
		g.logger.Warn("failed to read identity handshake", "remote", r.RemoteAddr, "error", err)
		return
	}
	identity := string(identityMsg)

	box, err := g.fw.NewMailbox(identity, g.cfg.RecvTimeoutMS)
	if err != nil {
		g.logger.Warn("failed to bind gateway mailbox", "identity", identity, "error", err)
		return
	}
	defer box.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.readLoop(conn, box)
	}()

	g.writeLoop(r.Context(), conn, box, done)
}

func (g *WSGateway) readLoop(conn *websocket.Conn, box *mailbox.Mailbox) {
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			return
		}
		peer, payload, err := decodeEnvelope(body)
		if err != nil {
			g.logger.Warn("dropping malformed envelope", "identity", box.Name(), "error", err)
			continue
		}
		if err := box.Send(peer, payload); err != nil {
			g.logger.Warn("gateway send failed", "identity", box.Name(), "peer", peer, "error", err)
		}
	}
}

func (g *WSGateway) writeLoop(ctx context.Context, conn *websocket.Conn, box *mailbox.Mailbox, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		_, err := box.Recv(true, func(from string, payload []byte) {
			body := encodeEnvelope(from, payload)
			if writeErr := conn.WriteMessage(websocket.BinaryMessage, body); writeErr != nil {
				g.logger.Warn("gateway write failed", "identity", box.Name(), "error", writeErr)
			}
		})
		if errors.Is(err, mailbox.ErrClosed) {
			return
		}
	}
}
