package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/sink"

	"github.com/gorilla/websocket"
)

const (
	frameJoin  = "join"
	frameLeave = "leave"
	frameSend  = "send"
)

// clientFrame is what a connected client may send over the socket. Anything
// heavier (channel management, history) goes through the REST surface.
type clientFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	Content   string `json:"content,omitempty"`
}

// Gateway upgrades authenticated requests to websockets and pumps events
// between the registry and the socket. Each connection gets its own sink;
// the gateway owns the socket lifecycle, the router owns the semantics.
type Gateway struct {
	log          *slog.Logger
	registry     contract.IRegistry
	router       contract.IRouter
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
}

func NewGateway(log *slog.Logger, registry contract.IRegistry, router contract.IRouter,
	bufferSize int, writeTimeout time.Duration) *Gateway {
	return &Gateway{
		log:      log,
		registry: registry,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Token auth already gates the endpoint; cross-origin pages
			// cannot read the token, so origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err, "user_id", identity.UserID)
		return
	}

	inbox := sink.NewConnSink(g.bufferSize)
	connID := g.registry.Connect(identity.UserID, inbox)
	g.log.Info("Connection opened", "conn_id", connID, "user_id", identity.UserID)

	done := make(chan struct{})
	go g.writePump(ws, inbox, done)

	g.readPump(r.Context(), ws, connID, inbox)

	// Read side is gone: unregister first so the fan-out stops targeting
	// this sink, then close the inbox to let the write pump drain and exit.
	g.registry.Disconnect(connID)
	inbox.Close()
	<-done
	_ = ws.Close()
	g.log.Info("Connection closed", "conn_id", connID, "user_id", identity.UserID)
}

func (g *Gateway) readPump(ctx context.Context, ws *websocket.Conn, connID domain.ConnectionID, inbox *sink.ConnSink) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Warn("Websocket read failed", "conn_id", connID, "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			g.reject(ctx, inbox, "malformed frame")
			continue
		}

		channelID := domain.ChannelID(frame.ChannelID)
		switch frame.Type {
		case frameJoin:
			if err := g.registry.Join(connID, channelID); err != nil {
				g.reject(ctx, inbox, err.Error())
			}
		case frameLeave:
			g.registry.Leave(connID, channelID)
		case frameSend:
			if _, err := g.router.HandleSend(ctx, connID, channelID, frame.Content); err != nil {
				g.reject(ctx, inbox, err.Error())
			}
		default:
			g.reject(ctx, inbox, "unknown frame type")
		}
	}
}

// reject pushes an error event to this connection only. Frame failures are
// private; the rest of the channel never sees them.
func (g *Gateway) reject(ctx context.Context, inbox *sink.ConnSink, message string) {
	if err := inbox.Consume(ctx, event.Error{Message: message}); err != nil {
		g.log.Debug("Dropped error event", "error", err)
	}
}

func (g *Gateway) writePump(ws *websocket.Conn, inbox *sink.ConnSink, done chan<- struct{}) {
	defer close(done)
	for e := range inbox.Events {
		_ = ws.SetWriteDeadline(time.Now().Add(g.writeTimeout))
		if err := ws.WriteJSON(toPushEnvelope(e)); err != nil {
			g.log.Debug("Websocket write failed", "error", err)
			// Keep draining so the fan-out side never blocks on Close.
			continue
		}
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(g.writeTimeout))
}
