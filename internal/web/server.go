// Package web serves the board as an HTML page with a JSON API and pushes
// panel updates to open pages over a websocket.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/poll"
)

// Routes
const (
	PathIndex     = "/"
	PathBoard     = "/api/board"
	PathRefresh   = "/api/refresh"
	PathWebsocket = "/ws"
	PathHealth    = "/healthz"
)

// Refresher starts an out-of-band poll cycle. *poll.Scheduler implements it.
type Refresher interface {
	Tick(ctx context.Context) <-chan poll.Result
}

// Options configure a Server.
type Options struct {
	// RefreshLimit is the sustained rate of manual refreshes per second.
	// Zero disables manual refresh.
	RefreshLimit float64
	// RefreshBurst defaults to 1.
	RefreshBurst int
	Logger       logger.Logger
}

// Server is the web surface over a panel store.
type Server struct {
	store     *panel.Store
	refresher Refresher
	limiter   *rate.Limiter
	hub       *Hub
	render    *Renderer
	log       logger.Logger
	engine    *gin.Engine
}

// Message is pushed to websocket clients.
type Message struct {
	Type    string `json:"type"` // "panel" or "updated"
	Node    string `json:"node,omitempty"`
	Status  string `json:"status,omitempty"`
	Label   string `json:"label,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Version uint64 `json:"version,omitempty"`
	HTML    string `json:"html,omitempty"`
	Time    string `json:"time,omitempty"`
}

// BoardResponse is the body of GET /api/board.
type BoardResponse struct {
	Header      panel.Header  `json:"header"`
	LastUpdated *time.Time    `json:"last_updated"`
	Version     uint64        `json:"version"`
	Panels      []panel.Panel `json:"panels"`
}

// RefreshResult is one node's line in the POST /api/refresh response.
type RefreshResult struct {
	Node      string `json:"node"`
	OK        bool   `json:"ok"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// RefreshResponse is the body of POST /api/refresh.
type RefreshResponse struct {
	Nodes   int             `json:"nodes"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Results []RefreshResult `json:"results"`
}

// New builds a server. ctx bounds websocket connections; cancel it to shut
// them down.
func New(ctx context.Context, store *panel.Store, refresher Refresher, opts Options) (*Server, error) {
	render, err := NewRenderer()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Couldn't parse the page templates", "")
	}

	s := &Server{
		store:     store,
		refresher: refresher,
		render:    render,
		log:       opts.Logger,
	}
	if s.log == nil {
		s.log = logger.Noop()
	}
	if opts.RefreshLimit > 0 {
		burst := opts.RefreshBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RefreshLimit), burst)
	}
	s.hub = NewHub(s.log)
	s.engine = s.routes(ctx)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes(ctx context.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET(PathIndex, s.handleIndex)
	r.GET(PathBoard, s.handleBoard)
	r.POST(PathRefresh, s.handleRefresh)
	r.GET(PathHealth, s.handleHealth)
	r.GET(PathWebsocket, s.hub.HandleWebSocket(ctx, s.snapshotMessages))
	return r
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	data := PageData{
		Header:        s.store.Header(),
		LastUpdated:   FormatUpdated(s.store.LastUpdated()),
		Panels:        s.store.Panels(),
		WebsocketPath: PathWebsocket,
		RefreshPath:   PathRefresh,
	}

	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.render.Page(c.Writer, data); err != nil {
		s.log.Error("render page: %v", err)
	}
}

// NewBoardResponse copies the board's current state. LastUpdated is nil
// until the first poll cycle completes.
func NewBoardResponse(store *panel.Store) BoardResponse {
	resp := BoardResponse{
		Header:  store.Header(),
		Version: store.Version(),
		Panels:  store.Panels(),
	}
	if t := store.LastUpdated(); !t.IsZero() {
		resp.LastUpdated = &t
	}
	return resp
}

func (s *Server) handleBoard(c *gin.Context) {
	c.JSON(http.StatusOK, NewBoardResponse(s.store))
}

func (s *Server) handleRefresh(c *gin.Context) {
	if s.refresher == nil || s.limiter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manual refresh is disabled"})
		return
	}
	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	var resp RefreshResponse
	for _, r := range poll.Drain(s.refresher.Tick(c.Request.Context())) {
		res := RefreshResult{Node: r.Node, OK: r.Err == nil && !r.Skipped, Skipped: r.Skipped, LatencyMS: r.Latency.Milliseconds()}
		switch {
		case r.Skipped:
			resp.Skipped++
		case r.Err != nil:
			resp.Failed++
			res.Error = errors.Summary(r.Err)
		}
		resp.Results = append(resp.Results, res)
	}
	resp.Nodes = len(resp.Results)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"nodes":   len(s.store.Nodes()),
		"clients": s.hub.ClientCount(),
	})
}

// snapshotMessages returns the messages that bring a new page up to date.
func (s *Server) snapshotMessages() [][]byte {
	var out [][]byte
	for _, p := range s.store.Panels() {
		if msg, err := s.panelMessage(p); err == nil {
			out = append(out, msg)
		}
	}
	if msg, err := json.Marshal(Message{Type: "updated", Time: FormatUpdated(s.store.LastUpdated())}); err == nil {
		out = append(out, msg)
	}
	return out
}

func (s *Server) panelMessage(p panel.Panel) ([]byte, error) {
	html, err := s.render.Panel(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:    "panel",
		Node:    p.Node,
		Status:  string(p.Status),
		Label:   p.Label,
		Kind:    p.Body.Kind.String(),
		Version: p.Version,
		HTML:    html,
	})
}

// Watch pushes store changes to websocket clients until ctx ends. Only
// panels whose version moved since the last push are sent.
func (s *Server) Watch(ctx context.Context) error {
	changes, cancel := s.store.Subscribe()
	defer cancel()
	return s.push(ctx, changes, s.versions(), s.store.LastUpdated())
}

func (s *Server) versions() map[string]uint64 {
	sent := make(map[string]uint64)
	for _, p := range s.store.Panels() {
		sent[p.Node] = p.Version
	}
	return sent
}

func (s *Server) push(ctx context.Context, changes <-chan struct{}, sent map[string]uint64, lastUpdated time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		}

		for _, p := range s.store.Panels() {
			if p.Version == sent[p.Node] {
				continue
			}
			sent[p.Node] = p.Version
			msg, err := s.panelMessage(p)
			if err != nil {
				s.log.Error("render panel %s: %v", p.Node, err)
				continue
			}
			s.hub.Broadcast(msg)
		}

		if t := s.store.LastUpdated(); !t.Equal(lastUpdated) {
			lastUpdated = t
			if msg, err := json.Marshal(Message{Type: "updated", Time: FormatUpdated(t)}); err == nil {
				s.hub.Broadcast(msg)
			}
		}
	}
}

// Serve listens on addr and pushes updates until ctx ends, then shuts the
// HTTP server down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Watch(gctx)
	})
	g.Go(func() error {
		s.log.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't start the web server on "+addr,
				"Pick another address with --listen.")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
