package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkarag/venturo/internal/agent"
	"github.com/mkarag/venturo/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Analysis workflow
	mux.HandleFunc("POST /api/v1/chat/analyze-startup", s.analyzeStartup)

	// Conversations
	mux.HandleFunc("GET /api/v1/chat/conversations", s.listConversations)
	mux.HandleFunc("GET /api/v1/chat/conversations/{id}", s.getConversation)
	mux.HandleFunc("GET /api/v1/chat/conversations/{id}/status", s.getConversationStatus)
	mux.HandleFunc("DELETE /api/v1/chat/conversations/{id}", s.deleteConversation)

	// Agents
	mux.HandleFunc("GET /api/v1/agents/", s.listAgents)
	mux.HandleFunc("GET /api/v1/agents/workflow/status", s.getWorkflowStatus)

	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
}

type analyzeRequest struct {
	Prompt         string                 `json:"prompt"`
	ConversationID string                 `json:"conversation_id"`
	Files          []store.FileDescriptor `json:"files"`
}

// analyzeStartup accepts either a JSON body or a multipart form (the shape
// browser clients submit, with real file parts). File contents are not
// retained; only their descriptors travel with the conversation.
func (s *Server) analyzeStartup(w http.ResponseWriter, r *http.Request) {
	req, err := parseAnalyzeRequest(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	id := req.ConversationID
	if id == "" {
		id = uuid.New().String()
	}

	if existing, err := s.store.Get(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	} else if existing != nil {
		jsonError(w, "conversation already exists", http.StatusConflict)
		return
	}

	conv := &store.Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Prompt:    req.Prompt,
		Files:     req.Files,
	}
	// Background context: the analysis outlives the HTTP request.
	if err := s.orch.Start(context.Background(), conv); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]any{
		"conversation_id": id,
		"status":          "started",
		"message":         "Analysis started. Connect to the WebSocket for real-time updates.",
		"websocket_url":   fmt.Sprintf("/api/v1/ws?conversation_id=%s", id),
	})
}

func parseAnalyzeRequest(r *http.Request) (*analyzeRequest, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		req := &analyzeRequest{
			Prompt:         r.FormValue("prompt"),
			ConversationID: r.FormValue("conversation_id"),
		}
		if r.MultipartForm != nil {
			for _, fh := range r.MultipartForm.File["files"] {
				req.Files = append(req.Files, store.FileDescriptor{
					Name: fh.Filename,
					Type: fh.Header.Get("Content-Type"),
					Size: fh.Size,
				})
			}
		}
		return req, nil
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return &req, nil
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	conversations, total, err := s.store.List(limit, offset)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}

	jsonResponse(w, map[string]any{
		"conversations": conversations,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conv == nil {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, conv)
}

func (s *Server) getConversationStatus(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conv == nil {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}

	out := map[string]any{
		"conversation_id":  conv.ID,
		"status":           conv.Status,
		"created_at":       conv.CreatedAt.Format(time.RFC3339),
		"has_final_report": conv.FinalReport != nil,
	}
	if conv.CompletedAt != nil {
		out["completed_at"] = conv.CompletedAt.Format(time.RFC3339)
	}
	if conv.Error != "" {
		out["error"] = conv.Error
	}
	jsonResponse(w, out)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	ok, err := s.store.Delete(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"message": "Conversation deleted successfully"})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0, len(agent.Roles))
	for _, role := range agent.Roles {
		out = append(out, map[string]any{
			"agent_id":    role.String() + "_agent",
			"name":        role.String() + "_agent",
			"description": role.Description(),
			"role":        role.String(),
			"status":      "available",
		})
	}
	jsonResponse(w, out)
}

func (s *Server) getWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	active, ids := s.orch.ActiveRuns()

	jsonResponse(w, map[string]any{
		"workflow_name": "Startup Analysis Workflow",
		"description":   "Three-phase multi-agent analysis of startup ideas",
		"phases": []map[string]any{
			{
				"phase":             1,
				"name":              "Specialist Analysis",
				"description":       "Marketing, Product, and Legal agents analyze the idea in parallel",
				"agents":            []string{"marketing", "product", "legal"},
				"duration_estimate": "30-60 seconds",
			},
			{
				"phase":             2,
				"name":              "Verification",
				"description":       "Verifier agent reviews each specialist analysis",
				"agents":            []string{"verifier"},
				"duration_estimate": "30-60 seconds",
				"interactions":      []string{"verifier reviews marketing", "verifier reviews product", "verifier reviews legal"},
			},
			{
				"phase":             3,
				"name":              "Summary Generation",
				"description":       "Summary agent synthesizes verified analyses into a final report",
				"agents":            []string{"summary"},
				"duration_estimate": "15-30 seconds",
			},
		},
		"total_duration_estimate": "1-3 minutes",
		"output":                  "Structured startup success report with scores and recommendations",
		"active_workflows":        active,
		"active_conversations":    ids,
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	_, total, err := s.store.List(1, 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	active, _ := s.orch.ActiveRuns()
	clients, rooms := s.hub.Counts()

	jsonResponse(w, map[string]any{
		"status":              "ok",
		"version":             s.version,
		"uptime":              time.Since(s.startedAt).Round(time.Second).String(),
		"conversations":       total,
		"active_workflows":    active,
		"websocket_clients":   clients,
		"conversation_rooms":  rooms,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
