package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/middleware"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/service"
	"github.com/noah-isme/campus-admin-console/pkg/response"
)

const (
	liveReadTimeout  = 5 * time.Minute
	liveWriteTimeout = 10 * time.Second
)

// Live actions sent by the browser.
const (
	liveActionQuery = "query"
	liveActionPing  = "ping"
)

type liveEvent string

const (
	liveEventList   liveEvent = "list"
	liveEventNotice liveEvent = "notice"
	liveEventError  liveEvent = "error"
	liveEventPong   liveEvent = "pong"
)

type liveRequest struct {
	Action   string `json:"action"`
	Search   string `json:"search"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type liveRow struct {
	ID     string   `json:"id"`
	Active bool     `json:"active"`
	Cells  []string `json:"cells"`
}

type liveListEvent struct {
	Event liveEvent        `json:"event"`
	Items []models.Record  `json:"items"`
	Rows  []liveRow        `json:"rows"`
	Total int              `json:"total"`
	Query models.ListQuery `json:"query"`
}

type liveNoticeEvent struct {
	Event  liveEvent     `json:"event"`
	Notice models.Notice `json:"notice"`
}

type liveErrorEvent struct {
	Event liveEvent `json:"event"`
	Error string    `json:"error"`
}

type livePongEvent struct {
	Event liveEvent `json:"event"`
}

// buildUpgrader creates a websocket upgrader that only accepts the configured origins.
// An empty list accepts any origin.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimRight(r.Header.Get("Origin"), "/")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
					return true
				}
			}
			return false
		},
	}
}

// liveConn serialises writes; gorilla connections support one concurrent writer.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *liveConn) write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return l.conn.WriteJSON(v)
}

// LiveHandler streams an entity's list over a websocket as the operator types.
type LiveHandler struct {
	workspaces workspaceProvider
	metrics    *service.MetricsService
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewLiveHandler constructs LiveHandler.
func NewLiveHandler(workspaces workspaceProvider, metrics *service.MetricsService, allowedOrigins []string, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{
		workspaces: workspaces,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "live_handler")),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/admin/:entity
// Each query runs concurrently; only the newest one's result reaches the list, so a burst of
// keystrokes settles on the last term typed.
func (h *LiveHandler) Stream(c *gin.Context) {
	session := middleware.CurrentSession(c)
	m, err := h.workspaces.Manager(session, c.Param("entity"))
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.LiveConnectionOpened()
	defer h.metrics.LiveConnectionClosed()

	wsLog := h.logger.With(zap.String("entity", m.Schema().Name), zap.String("session", session.ID))
	wsLog.Debug("live list connected")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	lc := &liveConn{conn: conn}

	for {
		var req liveRequest
		_ = conn.SetReadDeadline(time.Now().Add(liveReadTimeout))
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn("unexpected close", zap.Error(err))
			} else {
				wsLog.Debug("live list closed")
			}
			break
		}

		switch req.Action {
		case liveActionQuery:
			query := liveQuery(req, m.List().Query)
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.query(ctx, lc, m, query)
			}()
		case liveActionPing:
			_ = lc.write(livePongEvent{Event: liveEventPong})
		default:
			_ = lc.write(liveErrorEvent{Event: liveEventError, Error: "unknown action: " + req.Action})
		}
	}

	cancel()
	wg.Wait()
}

func (h *LiveHandler) query(ctx context.Context, lc *liveConn, m *manager.Manager, query models.ListQuery) {
	sink := &manager.NoticeSink{}
	err := m.Query(manager.WithNoticeSink(ctx, sink), query)
	if ctx.Err() != nil {
		return
	}
	for _, notice := range sink.Notices() {
		_ = lc.write(liveNoticeEvent{Event: liveEventNotice, Notice: notice})
	}
	if err != nil {
		_ = lc.write(liveErrorEvent{Event: liveEventError, Error: client.UserMessage(err)})
		return
	}

	snap := m.List()
	if snap.State == manager.ListLoading {
		// a newer query is in flight and will report
		return
	}
	sch := m.Schema()
	rows := make([]liveRow, 0, len(snap.Rows))
	for _, row := range buildRows(sch, snap.Rows) {
		rows = append(rows, liveRow{ID: row.ID, Active: row.Active, Cells: row.Cells})
	}
	items := snap.Rows
	if items == nil {
		items = []models.Record{}
	}
	_ = lc.write(liveListEvent{
		Event: liveEventList,
		Items: items,
		Rows:  rows,
		Total: snap.Total,
		Query: snap.Query,
	})
}

// liveQuery fills the fields a browser left out from the list's current query.
func liveQuery(req liveRequest, current models.ListQuery) models.ListQuery {
	query := models.ListQuery{Search: strings.TrimSpace(req.Search), Page: req.Page, PageSize: req.PageSize}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = current.PageSize
	}
	return query
}
