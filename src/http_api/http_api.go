// Package http_api exposes the operator surface of a simulation over HTTP: cluster status, control
// orders and client commands.
package http_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mblichar/raft-sim/src/cluster"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// Server serves the HTTP API backed by a Cluster.
type Server struct {
	cluster *cluster.Cluster
}

func New(c *cluster.Cluster) *Server {
	return &Server{cluster: c}
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.Healthz)
	r.Get("/status", s.Status)
	r.Get("/clients", s.Clients)
	r.Get("/nodes/{id}", s.GetNode)
	r.Post("/nodes/{id}/requests", s.SubmitRequest)
	r.Post("/orders", s.PostOrder)
	return r
}

type cursorView struct {
	NextIndex   raft_state.LogIndex `json:"next_index"`
	CommitIndex raft_state.LogIndex `json:"commit_index"`
}

type entryView struct {
	Term      raft_state.Term   `json:"term"`
	ClientId  raft_state.NodeId `json:"client_id"`
	RequestId uint32            `json:"request_id"`
	Command   string            `json:"command"`
}

type nodeView struct {
	NodeId         raft_state.NodeId     `json:"node_id"`
	Role           string                `json:"role"`
	Term           raft_state.Term       `json:"term"`
	VotedFor       raft_state.NodeId     `json:"voted_for"`
	LeaderId       raft_state.NodeId     `json:"leader_id"`
	Crashed        bool                  `json:"crashed"`
	Speed          int                   `json:"speed"`
	CommitIndex    raft_state.LogIndex   `json:"commit_index"`
	LastIndex      raft_state.LogIndex   `json:"last_index"`
	LogDepth       string                `json:"log_depth"`
	Log            []entryView           `json:"log"`
	Cursors        map[string]cursorView `json:"cursors,omitempty"`
	PendingCommits []raft_state.LogIndex `json:"pending_commits,omitempty"`
}

func toNodeView(status raft_state.NodeStatus) nodeView {
	view := nodeView{
		NodeId:         status.NodeId,
		Role:           status.Role.String(),
		Term:           status.Term,
		VotedFor:       status.VotedFor,
		LeaderId:       status.LeaderId,
		Crashed:        status.Crashed,
		Speed:          status.Speed,
		CommitIndex:    status.CommitIndex,
		LastIndex:      status.LastIndex,
		LogDepth:       status.LogDepth(),
		Log:            make([]entryView, len(status.Log)),
		PendingCommits: status.PendingCommits,
	}
	for idx, entry := range status.Log {
		view.Log[idx] = entryView{Term: entry.Term, ClientId: entry.ClientId, RequestId: entry.RequestId, Command: entry.Command}
	}
	if len(status.Cursors) > 0 {
		view.Cursors = make(map[string]cursorView, len(status.Cursors))
		for peer, cursor := range status.Cursors {
			view.Cursors[strconv.Itoa(int(peer))] = cursorView{NextIndex: cursor.NextIndex, CommitIndex: cursor.CommitIndex}
		}
	}
	return view
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	statuses := s.cluster.Statuses()
	nodes := make([]nodeView, len(statuses))
	for idx, status := range statuses {
		nodes[idx] = toNodeView(status)
	}

	// 0 when no node leads
	leader, _ := s.cluster.Leader()
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": s.cluster.RunID,
		"leader": leader,
		"nodes":  nodes,
	})
}

func (s *Server) Clients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clients": s.cluster.Clients()})
}

func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeId, ok := nodeIdParam(w, r)
	if !ok {
		return
	}

	status, err := s.cluster.Status(nodeId)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toNodeView(status))
}

// SubmitRequest sends a client command on behalf of the operator, the commit outcome is reported in logs
func (s *Server) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	nodeId, ok := nodeIdParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Command == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "command is required")
		return
	}

	requestId, err := s.cluster.Submit(nodeId, body.Command)
	if err != nil {
		writeClusterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "request_id": requestId})
}

func (s *Server) PostOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind      string            `json:"kind"`
		Target    raft_state.NodeId `json:"target"`
		Parameter int               `json:"parameter"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}

	kind, ok := raft_commands.ParseControlKind(body.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown order kind")
		return
	}

	if err := s.cluster.Order(raft_commands.ControlCommand{Kind: kind, Target: body.Target, Parameter: body.Parameter}); err != nil {
		writeClusterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func nodeIdParam(w http.ResponseWriter, r *http.Request) (raft_state.NodeId, bool) {
	nodeId, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid node id")
		return 0, false
	}
	return raft_state.NodeId(nodeId), true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code, "message": msg})
}

func writeClusterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cluster.ErrUnknownTarget):
		writeError(w, http.StatusNotFound, "unknown_target", err.Error())
	case errors.Is(err, cluster.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, "invalid_order", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
