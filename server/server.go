// Package server exposes the collaborative document engine over HTTP
// and WebSocket, the same shape the original single-file prototype
// server used, generalized to hold one document.Doc per document id
// behind its own mutex, ship accepted ops out over transport, persist
// them, and track presence in Redis.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/loomtext/egwalker/document"
	"github.com/loomtext/egwalker/oplog"
	"github.com/loomtext/egwalker/presence"
	"github.com/loomtext/egwalker/store"
	"github.com/loomtext/egwalker/transport"
)

// room bundles a document with the mutex guarding it and the set of
// live websocket connections watching it. Every request that touches
// the document takes the mutex, so the cached snapshot is never read or
// mutated concurrently and the local fast path stays cheap.
type room struct {
	mu   sync.Mutex
	doc  *document.Doc
	conn map[*websocket.Conn]bool
}

type Server struct {
	roomsMu sync.Mutex
	rooms   map[string]*room

	shipper  *transport.Shipper
	store    *store.Store
	presence *presence.Registry
	upgrader websocket.Upgrader
}

func New(shipper *transport.Shipper, pres *presence.Registry, st *store.Store) *Server {
	return &Server{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		shipper:  shipper,
		store:    st,
		presence: pres,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/docs/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/docs/{id}/insert", s.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/docs/{id}/delete", s.handleDelete).Methods(http.MethodPost)
	r.HandleFunc("/docs/{id}/ws", s.handleWebSocket)
	return r
}

// getRoom returns the room for id, creating it on first access. A
// freshly created room's document is bootstrapped from persisted
// history via s.store, if configured, so a process restart doesn't
// lose ops that were never re-delivered over Kafka.
func (s *Server) getRoom(id, agent string) (*room, error) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if rm, ok := s.rooms[id]; ok {
		return rm, nil
	}

	doc := document.New(agent)
	if s.store != nil {
		history, err := s.store.Load(id)
		if err != nil {
			return nil, fmt.Errorf("server: load %s: %w", id, err)
		}
		if len(history.Ops) > 0 {
			loaded, err := document.FromLog(agent, history)
			if err != nil {
				return nil, fmt.Errorf("server: replay %s: %w", id, err)
			}
			doc = loaded
		}
	}

	rm := &room{doc: doc, conn: make(map[*websocket.Conn]bool)}
	s.rooms[id] = rm
	return rm, nil
}

type editRequest struct {
	Agent string `json:"agent"`
	Pos   int    `json:"pos"`
	Text  string `json:"text,omitempty"`
	Len   int    `json:"len,omitempty"`
}

type docResponse struct {
	Content string `json:"content"`
}

// pendingOp pairs a newly appended op with its parents already resolved
// to Ids. Building it requires the owning room's mutex: parent LVs are
// only meaningful against the *oplog.OpLog they were assigned in, so
// they must be translated before the lock is released and a concurrent
// edit can mutate that oplog.
type pendingOp struct {
	op        oplog.Op[rune]
	parentIDs []oplog.Id
}

// resolveNewOps captures pendingOps for every op appended to logg since
// index before. Callers must hold the owning room's mutex.
func resolveNewOps(logg *oplog.OpLog[rune], before int) []pendingOp {
	newOps := logg.Ops[before:]
	pending := make([]pendingOp, len(newOps))
	for i, op := range newOps {
		parentIDs := make([]oplog.Id, len(op.Parents))
		for j, p := range op.Parents {
			parentIDs[j] = logg.Ops[p].ID
		}
		pending[i] = pendingOp{op: op, parentIDs: parentIDs}
	}
	return pending
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rm, err := s.getRoom(id, "server")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rm.mu.Lock()
	content := rm.doc.Text()
	rm.mu.Unlock()

	json.NewEncoder(w).Encode(docResponse{Content: content})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rm, err := s.getRoom(id, req.Agent)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rm.mu.Lock()
	before := len(rm.doc.Log.Ops)
	rm.doc.Insert(req.Pos, req.Text)
	pending := resolveNewOps(rm.doc.Log, before)
	content := rm.doc.Text()
	rm.mu.Unlock()

	s.ship(r.Context(), id, pending)
	s.persist(id, pending)
	s.broadcast(rm, "insert", req)

	json.NewEncoder(w).Encode(docResponse{Content: content})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rm, err := s.getRoom(id, req.Agent)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rm.mu.Lock()
	before := len(rm.doc.Log.Ops)
	rm.doc.Delete(req.Pos, req.Len)
	pending := resolveNewOps(rm.doc.Log, before)
	content := rm.doc.Text()
	rm.mu.Unlock()

	s.ship(r.Context(), id, pending)
	s.persist(id, pending)
	s.broadcast(rm, "delete", req)

	json.NewEncoder(w).Encode(docResponse{Content: content})
}

// ship publishes newly appended ops to Kafka, best-effort: a shipping
// failure is logged but never fails the client's request, since the op
// already landed in the authoritative in-memory oplog.
func (s *Server) ship(ctx context.Context, docID string, pending []pendingOp) {
	if s.shipper == nil {
		return
	}
	for _, p := range pending {
		if err := s.shipper.Publish(ctx, docID, p.op, p.parentIDs); err != nil {
			log.Printf("server: ship %s: %v", docID, err)
		}
	}
}

// persist writes newly appended ops to the store, best-effort, for the
// same reason ship is best-effort: the op is already durable in the
// in-memory oplog that serves this replica's reads.
func (s *Server) persist(docID string, pending []pendingOp) {
	if s.store == nil {
		return
	}
	for _, p := range pending {
		if err := s.store.Append(docID, p.op, p.parentIDs); err != nil {
			log.Printf("server: persist %s: %v", docID, err)
		}
	}
}

func (s *Server) broadcast(rm *room, kind string, req editRequest) {
	rm.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(rm.conn))
	for c := range rm.conn {
		conns = append(conns, c)
	}
	rm.mu.Unlock()

	msg := struct {
		Type string      `json:"type"`
		Data editRequest `json:"data"`
	}{Type: kind, Data: req}

	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("server: broadcast: %v", err)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		agent = "anon-" + uuid.NewString()
	}

	rm, err := s.getRoom(id, agent)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: upgrade: %v", err)
		return
	}
	defer conn.Close()

	rm.mu.Lock()
	rm.conn[conn] = true
	content := rm.doc.Text()
	rm.mu.Unlock()

	if s.presence != nil {
		if err := s.presence.Join(r.Context(), id, agent); err != nil {
			log.Printf("server: presence join: %v", err)
		}
		defer func() {
			if err := s.presence.Leave(context.Background(), id, agent); err != nil {
				log.Printf("server: presence leave: %v", err)
			}
		}()
	}

	if err := conn.WriteJSON(struct {
		Type string      `json:"type"`
		Data docResponse `json:"data"`
	}{Type: "init", Data: docResponse{Content: content}}); err != nil {
		log.Printf("server: init write: %v", err)
	}

	for {
		var msg struct {
			Type string      `json:"type"`
			Data editRequest `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		rm.mu.Lock()
		before := len(rm.doc.Log.Ops)
		switch msg.Type {
		case "insert":
			rm.doc.Insert(msg.Data.Pos, msg.Data.Text)
		case "delete":
			rm.doc.Delete(msg.Data.Pos, msg.Data.Len)
		}
		pending := resolveNewOps(rm.doc.Log, before)
		rm.mu.Unlock()

		s.ship(r.Context(), id, pending)
		s.persist(id, pending)
		s.broadcast(rm, msg.Type, msg.Data)
	}

	rm.mu.Lock()
	delete(rm.conn, conn)
	rm.mu.Unlock()
}

// Merge applies a remotely observed op (e.g. decoded off a Kafka
// consumer) into the named document's oplog and re-broadcasts the
// resulting content to any connected clients. A duplicate op (already
// known to this replica, most often its own op echoed back) is a
// silent no-op.
func (s *Server) Merge(env transport.Envelope) {
	rm, err := s.getRoom(env.DocID, "remote")
	if err != nil {
		log.Printf("server: merge get room %s: %v", env.DocID, err)
		return
	}

	rm.mu.Lock()
	appended, err := rm.doc.MergeOp(env.Op, env.ParentIDs)
	rm.mu.Unlock()

	if err != nil {
		log.Printf("server: merge %s: %v", env.DocID, err)
		return
	}
	if !appended {
		return
	}

	s.persist(env.DocID, []pendingOp{{op: env.Op, parentIDs: env.ParentIDs}})
	s.broadcastRefresh(rm)
}

func (s *Server) broadcastRefresh(rm *room) {
	rm.mu.Lock()
	content := rm.doc.Text()
	conns := make([]*websocket.Conn, 0, len(rm.conn))
	for c := range rm.conn {
		conns = append(conns, c)
	}
	rm.mu.Unlock()

	msg := struct {
		Type string      `json:"type"`
		Data docResponse `json:"data"`
	}{Type: "refresh", Data: docResponse{Content: content}}

	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("server: broadcast refresh: %v", err)
		}
	}
}
