package controllers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/protocol"
)

const writeDeadline = 10 * time.Second

// WSController owns the /v1/ws endpoint: each upgraded socket becomes one
// engine connection speaking the JSON protocol. Reads happen on the request
// goroutine, writes on a dedicated pump draining the session's bounded
// queue; probes are WebSocket ping control frames acked by the pong
// handler.
type WSController struct {
	eng      *engine.Engine
	log      zerolog.Logger
	sendBuf  int
	upgrader websocket.Upgrader
}

// NewWSController creates the WebSocket controller. sendBuf bounds each
// connection's outbound queue; a full queue is a delivery failure, not a
// stall.
func NewWSController(eng *engine.Engine, sendBuf int, logger zerolog.Logger) *WSController {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &WSController{
		eng:     eng,
		log:     logger,
		sendBuf: sendBuf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Auth happens before handoff to the engine; origin policy is
			// the deployment's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the WebSocket route with the given mux.
func (c *WSController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/ws", c.handleWS)
}

func (c *WSController) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		return
	}
	session := newWSSession(conn, c.sendBuf)

	meta := engine.ConnMeta{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Origin:     r.Header.Get("Origin"),
	}
	id, err := c.eng.Register(session, meta)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		_ = session.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		c.eng.MarkAlive(id)
		return nil
	})

	go session.writePump()
	c.readPump(session, id)
	c.eng.Unregister(id)
}

// readPump decodes inbound frames until the socket dies. Malformed or
// oversized frames get an error reply and the connection stays open.
func (c *WSController) readPump(s *wsSession, connID string) {
	maxPayload := c.eng.SessionConfig().MaxPayloadBytes
	// Leave headroom above the protocol limit so the oversize path replies
	// instead of gorilla tearing the socket down.
	s.conn.SetReadLimit(maxPayload * 2)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if int64(len(data)) > maxPayload {
			_ = s.Send(protocol.NewError("message exceeds size limit"))
			continue
		}
		in, err := protocol.DecodeInbound(data)
		if err != nil {
			_ = s.Send(protocol.NewError(err.Error()))
			continue
		}
		c.eng.HandleMessage(connID, in)
	}
}

type wsFrame struct {
	ping    bool
	payload []byte
}

// wsSession adapts one gorilla connection into an engine.Sink. Send and
// Probe are non-blocking enqueues; the write pump owns the socket.
type wsSession struct {
	conn   *websocket.Conn
	out    chan wsFrame
	closed chan struct{}
	once   sync.Once
}

func newWSSession(conn *websocket.Conn, sendBuf int) *wsSession {
	return &wsSession{
		conn:   conn,
		out:    make(chan wsFrame, sendBuf),
		closed: make(chan struct{}),
	}
}

func (s *wsSession) Send(msg protocol.Outbound) error {
	b, err := protocol.EncodeOutbound(msg)
	if err != nil {
		return err
	}
	select {
	case <-s.closed:
		return engine.ErrClosed
	default:
	}
	select {
	case s.out <- wsFrame{payload: b}:
		return nil
	case <-s.closed:
		return engine.ErrClosed
	default:
		return engine.ErrQueueFull
	}
}

func (s *wsSession) Probe() error {
	select {
	case s.out <- wsFrame{ping: true}:
		return nil
	case <-s.closed:
		return engine.ErrClosed
	default:
		return engine.ErrQueueFull
	}
}

func (s *wsSession) Close() error {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	return nil
}

// writePump drains the outbound queue onto the socket. Any write error
// closes the session; the read pump then unregisters the connection.
func (s *wsSession) writePump() {
	defer func() { _ = s.Close() }()
	for {
		select {
		case <-s.closed:
			return
		case f := <-s.out:
			var err error
			if f.ping {
				err = s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
			} else {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				err = s.conn.WriteMessage(websocket.TextMessage, f.payload)
			}
			if err != nil {
				return
			}
		}
	}
}
