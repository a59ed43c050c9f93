package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/time/rate"

	"github.com/qsf-go/qsf/internal/framework"
	"github.com/qsf-go/qsf/internal/mailbox"
)

// Config controls the gateway's listener and per-connection behavior.
type Config struct {
	Addr             string
	AcceptsPerSecond float64
	AcceptBurst      int
	RecvTimeoutMS    int64
	Compress         bool
}

// DefaultConfig returns defaults for addr: at most 50 accepted
// connections per second with a burst of 20, a 200 ms mailbox receive
// timeout, and no compression.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:             addr,
		AcceptsPerSecond: 50,
		AcceptBurst:      20,
		RecvTimeoutMS:    200,
		Compress:         false,
	}
}

// Gateway bridges external TCP clients onto the framework's mailbox
// addressing scheme: each connection gets exactly one mailbox, named
// by whatever identity the client declares in its first packet.
type Gateway struct {
	fw      *framework.Framework
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	listener net.Listener
}

// New constructs a Gateway wired to fw. logger defaults to fw.Logger.
func New(fw *framework.Framework, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = fw.Logger
	}
	return &Gateway{
		fw:      fw,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.AcceptsPerSecond), cfg.AcceptBurst),
		logger:  logger.With("component", "gateway"),
	}
}

// ListenAndServe accepts connections on cfg.Addr until ctx is
// cancelled or the listener fails. Each accepted connection that
// clears the accept-rate limiter gets its own goroutine and mailbox;
// connections that don't clear it are closed immediately.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", g.cfg.Addr, err)
	}
	g.listener = l

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gateway: accept: %w", err)
		}

		if !g.limiter.Allow() {
			g.logger.Warn("accept rate limit exceeded, dropping connection", "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go g.handleConn(ctx, conn)
	}
}

func (g *Gateway) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	identityPacket, err := DecodePacket(conn)
	if err != nil {
		g.logger.Warn("failed to read identity handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	identity := string(identityPacket)

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

	g.writeLoop(ctx, conn, box, done)
}

// readLoop decodes packets off the wire and forwards their envelope's
// payload to the destination the client named.
func (g *Gateway) readLoop(conn net.Conn, box *mailbox.Mailbox) {
	for {
		body, err := DecodePacket(conn)
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

// writeLoop polls the mailbox and relays every received frame back to
// the client as an enveloped packet, until ctx is cancelled or the
// read side observes a connection error.
func (g *Gateway) writeLoop(ctx context.Context, conn net.Conn, box *mailbox.Mailbox, done <-chan struct{}) {
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
			packet, encErr := EncodePacket(body, g.cfg.Compress)
			if encErr != nil {
				g.logger.Warn("failed to encode outbound packet", "identity", box.Name(), "error", encErr)
				return
			}
			if _, writeErr := conn.Write(packet); writeErr != nil {
				g.logger.Warn("gateway write failed", "identity", box.Name(), "error", writeErr)
			}
		})
		if errors.Is(err, mailbox.ErrClosed) {
			return
		}
	}
}
