package handler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"canvas-backend/internal/canvas"
	"canvas-backend/internal/layout"
	"canvas-backend/internal/model"
	"canvas-backend/internal/session"
)

// wsConn is the part of a WebSocket connection the canvas socket uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// CanvasWSHandler 문서 단위 캔버스 WebSocket 핸들러.
// 서버 측 Surface 로 포인터 입력을 받아 획을 커밋하고, 세션 이벤트를 클라이언트에 전달한다.
type CanvasWSHandler struct {
	sessions     *session.Manager
	pageSize     layout.Size
	pingInterval time.Duration
	writeTimeout time.Duration
	log          *zap.Logger

	clients map[string]map[*canvasClient]bool // documentID -> connections
	mu      sync.RWMutex
}

// CanvasWSInbound 클라이언트 → 서버 메시지
type CanvasWSInbound struct {
	Type   string                `json:"type"` // ping, layout, tool, down, move, up, leave, render
	PageID string                `json:"pageId,omitempty"`
	X      float64               `json:"x,omitempty"`
	Y      float64               `json:"y,omitempty"`
	Tool   *canvas.ToolSettings  `json:"tool,omitempty"`
	Fields []model.TemplateField `json:"fields,omitempty"`
	Force  bool                  `json:"force,omitempty"` // render 시 변경이 없어도 프레임 전송
}

// CanvasWSOutbound 서버 → 클라이언트 메시지
type CanvasWSOutbound struct {
	Type      string         `json:"type"` // event, state, frame, layout, pong, error
	Event     *session.Event `json:"event,omitempty"`
	PageID    string         `json:"pageId,omitempty"`
	State     string         `json:"state,omitempty"`
	Points    int            `json:"points,omitempty"` // 입력 중인 획의 점 개수
	Frame     []byte         `json:"frame,omitempty"`  // PNG (base64)
	Unchanged bool           `json:"unchanged,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// canvasClient 연결 하나의 상태. surfaces/layout/unwatch 는 읽기 루프에서만 접근
type canvasClient struct {
	conn     wsConn
	out      chan []byte
	surfaces map[string]*canvas.Surface
	layout   layout.Layout
	unwatch  []func()

	mu     sync.Mutex
	closed bool
}

// NewCanvasWSHandler CanvasWSHandler 생성
func NewCanvasWSHandler(sessions *session.Manager, pageSize layout.Size, pingInterval, writeTimeout time.Duration, log *zap.Logger) *CanvasWSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CanvasWSHandler{
		sessions:     sessions,
		pageSize:     pageSize,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		log:          log.Named("canvas_ws"),
		clients:      make(map[string]map[*canvasClient]bool),
	}
}

// HandleWebSocket WebSocket 연결 처리
func (h *CanvasWSHandler) HandleWebSocket(c *websocket.Conn) {
	// 패닉 복구 - 서버 크래시 방지
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("canvas websocket panic recovered", zap.Any("panic", r))
		}
	}()

	h.connect(c.Params("id"), c)
}

// connect holds the document's session open for the life of the connection
// so the idle sweep cannot evict it.
func (h *CanvasWSHandler) connect(documentID string, conn wsConn) {
	s, release, err := h.sessions.Acquire(context.Background(), documentID)
	if err != nil {
		msg, _ := json.Marshal(CanvasWSOutbound{Type: "error", Message: "document not found"})
		conn.WriteMessage(websocket.TextMessage, msg)
		conn.Close()
		return
	}
	defer release()

	h.serve(documentID, s, conn)
}

// serve runs one connection until the client goes away.
func (h *CanvasWSHandler) serve(documentID string, s *session.Session, conn wsConn) {
	client := &canvasClient{
		conn:     conn,
		out:      make(chan []byte, 64),
		surfaces: make(map[string]*canvas.Surface),
		layout:   layout.Generate(nil, h.pageSize, nil),
	}

	h.mu.Lock()
	if h.clients[documentID] == nil {
		h.clients[documentID] = make(map[*canvasClient]bool)
	}
	h.clients[documentID][client] = true
	h.mu.Unlock()

	h.log.Info("canvas websocket connected", zap.String("document_id", documentID))

	unsubscribe := s.Subscribe(func(ev session.Event) {
		h.enqueue(client, CanvasWSOutbound{Type: "event", Event: &ev})
	})

	writerDone := make(chan struct{})
	go h.writeLoop(client, writerDone)

	// 연결 해제 시 정리
	defer func() {
		unsubscribe()
		for _, stop := range client.unwatch {
			stop()
		}
		h.mu.Lock()
		delete(h.clients[documentID], client)
		if len(h.clients[documentID]) == 0 {
			delete(h.clients, documentID)
		}
		h.mu.Unlock()

		client.mu.Lock()
		client.closed = true
		close(client.out)
		client.mu.Unlock()
		<-writerDone
		conn.Close()
		h.log.Info("canvas websocket disconnected", zap.String("document_id", documentID))
	}()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg CanvasWSInbound
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}
		h.dispatch(s, client, msg)
	}
}

func (h *CanvasWSHandler) dispatch(s *session.Session, client *canvasClient, msg CanvasWSInbound) {
	switch msg.Type {
	case "ping":
		h.enqueue(client, CanvasWSOutbound{Type: "pong"})
		return
	case "layout":
		// 템플릿은 연결 단위로 모든 페이지에 적용
		client.layout = layout.Generate(msg.Fields, h.pageSize, nil)
		for _, surface := range client.surfaces {
			surface.SetLayout(client.layout)
		}
		h.enqueue(client, CanvasWSOutbound{Type: "layout", Fallback: client.layout.Fallback})
		return
	}
	if msg.PageID == "" {
		h.enqueue(client, CanvasWSOutbound{Type: "error", Message: "pageId is required"})
		return
	}

	surface := client.surfaces[msg.PageID]
	if surface == nil {
		surface = canvas.NewSurface(msg.PageID, s, client.layout, h.log)
		client.surfaces[msg.PageID] = surface
		client.unwatch = append(client.unwatch, surface.Watch(s))
	}

	ctx := context.Background()
	var err error
	switch msg.Type {
	case "tool":
		if msg.Tool != nil {
			surface.SetTool(*msg.Tool)
		}
		return
	case "down":
		surface.PointerDown(msg.X, msg.Y)
	case "move":
		surface.PointerMove(msg.X, msg.Y)
		return
	case "up":
		err = surface.PointerUp(ctx)
	case "leave":
		err = surface.PointerLeave(ctx)
	case "render":
		h.render(client, surface, msg.Force)
		return
	default:
		return
	}

	if err != nil {
		h.enqueue(client, CanvasWSOutbound{Type: "error", PageID: msg.PageID, Message: err.Error()})
	}
	state := CanvasWSOutbound{Type: "state", PageID: msg.PageID, State: surface.State().String()}
	if cur, ok := surface.Current(); ok {
		state.Points = len(cur.Points)
	}
	h.enqueue(client, state)
}

// render sends a PNG frame of the surface, or an unchanged marker when
// nothing was drawn since the last frame.
func (h *CanvasWSHandler) render(client *canvasClient, surface *canvas.Surface, force bool) {
	if !force && !surface.Dirty() {
		h.enqueue(client, CanvasWSOutbound{Type: "frame", PageID: surface.PageID(), Unchanged: true})
		return
	}
	frame, err := surface.Frame()
	if err != nil {
		h.log.Error("frame render failed", zap.String("page_id", surface.PageID()), zap.Error(err))
		h.enqueue(client, CanvasWSOutbound{Type: "error", PageID: surface.PageID(), Message: "render failed"})
		return
	}
	h.enqueue(client, CanvasWSOutbound{Type: "frame", PageID: surface.PageID(), Frame: frame})
}

// enqueue never blocks the session; a client that stops reading loses
// messages instead.
func (h *CanvasWSHandler) enqueue(client *canvasClient, msg CanvasWSOutbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("canvas websocket marshal failed", zap.Error(err))
		return
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.closed {
		return
	}
	select {
	case client.out <- data:
	default:
		h.log.Warn("canvas websocket client too slow, dropping message")
	}
}

func (h *CanvasWSHandler) writeLoop(client *canvasClient, done chan<- struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data, ok := <-client.out:
			if !ok {
				return
			}
			if err := h.write(client.conn, websocket.TextMessage, data); err != nil {
				h.log.Debug("canvas websocket write failed", zap.Error(err))
			}
		case <-tick:
			if err := h.write(client.conn, websocket.PingMessage, nil); err != nil {
				h.log.Debug("canvas websocket ping failed", zap.Error(err))
			}
		}
	}
}

func (h *CanvasWSHandler) write(conn wsConn, messageType int, data []byte) error {
	if h.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	return conn.WriteMessage(messageType, data)
}

// GetConnectedClients 문서에 연결된 클라이언트 수 반환
func (h *CanvasWSHandler) GetConnectedClients(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[documentID])
}
