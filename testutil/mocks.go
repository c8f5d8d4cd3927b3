package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockBackendServer creates a test server that mocks the intrasudo backend API
type MockBackendServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu          sync.Mutex
	events      []map[string]any
	statusCalls []map[string]any
	authHeaders []string
	corrHeaders []string
}

// NewMockBackendServer creates a new mock backend server. Unregistered paths answer 404.
func NewMockBackendServer(t *testing.T) *MockBackendServer {
	t.Helper()
	m := &MockBackendServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.authHeaders = append(m.authHeaders, r.Header.Get("Authorization"))
		m.corrHeaders = append(m.corrHeaders, r.Header.Get("X-Correlation-ID"))
		m.mu.Unlock()
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockLevels adds a handler for GET /api/levels
func (m *MockBackendServer) MockLevels(levels ...int) {
	if levels == nil {
		levels = []int{}
	}
	m.Handlers["/api/levels"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"levels": levels})
	}
}

// MockLevelsStatus makes GET /api/levels answer with a bare status code.
func (m *MockBackendServer) MockLevelsStatus(status int) {
	m.Handlers["/api/levels"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

// MockEvents adds a handler for POST /api/discord-bot that records each body and
// answers with the given envelope. data may be nil.
func (m *MockBackendServer) MockEvents(success bool, message string, data any) {
	m.Handlers["/api/discord-bot"] = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad json"})
			return
		}
		m.mu.Lock()
		m.events = append(m.events, body)
		m.mu.Unlock()
		resp := map[string]any{"success": success, "message": message}
		if data != nil {
			resp["data"] = data
		}
		status := http.StatusOK
		if !success {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, resp)
	}
}

// MockChatStatus adds handlers for the global and per-level chat status endpoints.
func (m *MockBackendServer) MockChatStatus(success bool, message string) {
	h := func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // recorded as-is
		if body == nil {
			body = map[string]any{}
		}
		body["path"] = r.URL.Path
		m.mu.Lock()
		m.statusCalls = append(m.statusCalls, body)
		m.mu.Unlock()
		status := http.StatusOK
		if !success {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"success": success, "message": message})
	}
	m.Handlers["/api/discord/chat/status"] = h
	m.Handlers["/api/discord/chat/level/status"] = h
}

// Events returns a copy of the event bodies received so far.
func (m *MockBackendServer) Events() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.events...)
}

// StatusCalls returns a copy of the chat status bodies received so far, each tagged with its path.
func (m *MockBackendServer) StatusCalls() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.statusCalls...)
}

// AuthHeaders returns the Authorization header of every request seen.
func (m *MockBackendServer) AuthHeaders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authHeaders...)
}

// CorrelationHeaders returns the X-Correlation-ID header of every request seen.
func (m *MockBackendServer) CorrelationHeaders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.corrHeaders...)
}
