package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cacheport "github.com/Behappytocode/circle/internal/infrastructure/cache/port"
	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/directory"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/gate"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/msgsync"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/session"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ChatSocketController upgrades a verified session to a websocket and
// hosts its component graph: session monitor, access gate, thread
// directory and message synchronizer, one set per connection.
//
// Inbound frames: open, close, send, filter, refresh, signout.
// Outbound frames: ready, threads, thread, error.
type ChatSocketController struct {
	Store repository.DataStore
	Feed  feed.Source
	Cache cacheport.Cache
	Log   *zap.Logger
}

func NewChatSocketController(store repository.DataStore, src feed.Source, cache cacheport.Cache, log *zap.Logger) *ChatSocketController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatSocketController{Store: store, Feed: src, Cache: cache, Log: log.Named("socket")}
}

type inboundFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Filter   string `json:"filter,omitempty"`
}

type readyFrame struct {
	Type    string          `json:"type"`
	View    string          `json:"view"`
	Account *circle.Account `json:"account,omitempty"`
}

type threadsFrame struct {
	Type    string          `json:"type"`
	Threads []circle.Thread `json:"threads"`
}

type threadFrame struct {
	Type     string           `json:"type"`
	ThreadID string           `json:"thread_id,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	State    string           `json:"state"`
	Messages []circle.Message `json:"messages"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetString(ctxAccountID)
		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.Log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		conn := newWSConn(accountID, ws)
		conn.Start()
		h.serve(conn)
	}
}

func (h *ChatSocketController) serve(conn *wsConn) {
	defer conn.Close(websocket.CloseNormalClosure, "session ended")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := session.NewMonitor(h.Log)
	changes, cancelWatch := monitor.Watch()
	defer cancelWatch()

	g := gate.New(h.Store, h.Cache, true, h.Log)
	monitor.Establish(conn.AccountID)
	g.HandleSession(ctx, <-changes)

	s := &socketSession{h: h, conn: conn, ctx: ctx, monitor: monitor, gate: g, changes: changes, rewire: make(chan struct{}, 1)}
	defer s.stopMessaging()

	s.announce()
	go s.forward()

	for {
		var f inboundFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if !s.dispatch(f) {
			return
		}
	}
}

// socketSession is the per-connection component graph. dir and syncer
// exist only while the gate reports an approved account.
type socketSession struct {
	h    *ChatSocketController
	conn *wsConn
	ctx  context.Context

	monitor *session.Monitor
	gate    *gate.Gate
	changes <-chan session.Change

	mu     sync.Mutex
	dir    *directory.Directory
	syncer *msgsync.Synchronizer
	filter string
	rewire chan struct{}
}

// announce pushes the gate's routing decision and starts or stops the
// messaging components to match it.
func (s *socketSession) announce() {
	st := s.gate.State()
	s.write(readyFrame{Type: "ready", View: st.View.String(), Account: st.Account})
	if st.CanMessage() {
		s.startMessaging()
	} else {
		s.stopMessaging()
	}
}

// dispatch handles one inbound frame; false stops the read loop.
func (s *socketSession) dispatch(f inboundFrame) bool {
	switch f.Type {
	case "open":
		s.openThread(f.ThreadID, f.Kind)
	case "close":
		if syncer := s.synchronizer(); syncer != nil {
			syncer.Close()
		}
		s.sendThread()
	case "send":
		s.sendMessage(f)
	case "filter":
		s.mu.Lock()
		s.filter = f.Filter
		s.mu.Unlock()
		s.sendThreads()
	case "refresh":
		// Manual status re-check offered by the pending view; also how
		// an approved account learns it was banned mid-session.
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		s.gate.Refresh(ctx)
		cancel()
		s.announce()
	case "signout":
		// The gate is driven by the monitor's watch channel for both the
		// establish on connect and the clear here.
		s.monitor.Clear()
		s.gate.HandleSession(s.ctx, <-s.changes)
		s.announce()
		return false
	default:
		s.write(errorFrame{Type: "error", Error: "unknown frame type"})
	}
	return true
}

// openThread resolves the requested thread against the live directory,
// never against raw client input, so unlisted identities cannot be
// addressed.
func (s *socketSession) openThread(threadID, kind string) {
	dir := s.directory()
	syncer := s.synchronizer()
	if dir == nil || syncer == nil {
		s.write(errorFrame{Type: "error", Error: "messaging unavailable for this account"})
		return
	}
	want, ok := threadFromParams(threadID, kind)
	if !ok {
		s.write(errorFrame{Type: "error", Error: "kind must be direct or group"})
		return
	}
	for _, t := range dir.Threads("") {
		if t.ID == want.ID && t.Kind == want.Kind {
			syncer.Open(s.ctx, t)
			s.sendThread()
			return
		}
	}
	s.write(errorFrame{Type: "error", Error: "thread not in directory"})
}

func (s *socketSession) sendMessage(f inboundFrame) {
	syncer := s.synchronizer()
	if syncer == nil {
		s.write(errorFrame{Type: "error", Error: "messaging unavailable for this account"})
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if _, err := syncer.Send(ctx, f.Body, f.ImageURL, f.AudioURL); err != nil {
		// The view is untouched on failure; the client may retry as-is.
		s.write(errorFrame{Type: "error", Error: err.Error()})
	}
}

func (s *socketSession) startMessaging() {
	s.mu.Lock()
	if s.dir != nil {
		s.mu.Unlock()
		return
	}
	dir, err := directory.Open(s.ctx, s.h.Store, s.h.Feed, s.conn.AccountID, s.h.Log)
	if err != nil {
		s.mu.Unlock()
		s.write(errorFrame{Type: "error", Error: "failed to load threads"})
		return
	}
	s.dir = dir
	s.syncer = msgsync.New(s.h.Store, s.h.Feed, s.conn.AccountID, s.h.Log)
	s.mu.Unlock()

	s.signalRewire()
	s.sendThreads()
}

func (s *socketSession) stopMessaging() {
	s.mu.Lock()
	dir, syncer := s.dir, s.syncer
	s.dir, s.syncer = nil, nil
	s.mu.Unlock()

	if dir != nil {
		dir.Close()
	}
	if syncer != nil {
		syncer.Close()
	}
	s.signalRewire()
}

// forward turns update signals from the directory and the synchronizer
// into outbound frames. Nil channels park their select arms until a
// rewire signal swaps the graph in or out.
func (s *socketSession) forward() {
	for {
		var dirUpdates, syncUpdates <-chan struct{}
		s.mu.Lock()
		if s.dir != nil {
			dirUpdates = s.dir.Updates()
		}
		if s.syncer != nil {
			syncUpdates = s.syncer.Updates()
		}
		s.mu.Unlock()

		select {
		case <-s.conn.Done():
			return
		case <-s.rewire:
		case <-dirUpdates:
			s.sendThreads()
		case <-syncUpdates:
			s.sendThread()
		}
	}
}

func (s *socketSession) sendThreads() {
	dir := s.directory()
	if dir == nil {
		return
	}
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	s.write(threadsFrame{Type: "threads", Threads: dir.Threads(filter)})
}

func (s *socketSession) sendThread() {
	syncer := s.synchronizer()
	if syncer == nil {
		return
	}
	frame := threadFrame{Type: "thread", State: syncer.State().String(), Messages: syncer.Messages()}
	if t, ok := syncer.Thread(); ok {
		frame.ThreadID = t.ID
		frame.Kind = string(t.Kind)
	}
	if frame.Messages == nil {
		frame.Messages = []circle.Message{}
	}
	s.write(frame)
}

func (s *socketSession) directory() *directory.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *socketSession) synchronizer() *msgsync.Synchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncer
}

func (s *socketSession) signalRewire() {
	select {
	case s.rewire <- struct{}{}:
	default:
	}
}

func (s *socketSession) write(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.h.Log.Warn("unencodable frame", zap.Error(err))
		return
	}
	_ = s.conn.Send(payload)
}
