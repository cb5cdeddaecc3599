package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/chat"
	"github.com/Pranaya-sht/waste-management-system/internal/middleware"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type testServer struct {
	*httptest.Server
	st  *store.Memory
	hub *chat.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop().Sugar()
	st := store.NewMemory()

	activitySvc := services.NewActivityLogService(st, logger)
	complaintSvc := services.NewComplaintService(st, activitySvc, logger, services.ComplaintOptions{})
	ratingSvc := services.NewRatingService(st, activitySvc, logger)
	approvalSvc := services.NewApprovalService(st, activitySvc, logger)
	chatSvc := services.NewChatService(st, logger)
	merkleSvc := services.NewMerkleService(logger)
	hub := chat.NewHub(chatSvc, logger)

	complaintHandler := NewComplaintHandler(complaintSvc, logger)
	ratingHandler := NewRatingHandler(ratingSvc, logger)
	activityHandler := NewActivityHandler(activitySvc, complaintSvc, logger)
	chatHandler := NewChatHandler(chatSvc, hub, nil, 16, logger)
	userHandler := NewUserHandler(approvalSvc, logger)
	healthHandler := NewHealthHandler(st, nil, merkleSvc, logger)

	r := chi.NewRouter()
	r.Use(middleware.StructuredLogger(zap.NewNop()))
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/ready", healthHandler.Ready)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(testSecret, st, logger))
			r.Get("/ws/chat/{room}", chatHandler.Connect)
			r.Post("/complaints", complaintHandler.Submit)
			r.Get("/complaints", complaintHandler.List)
			r.Get("/complaints/{id}", complaintHandler.Get)
			r.Post("/complaints/{id}/accept", complaintHandler.Accept)
			r.Post("/complaints/{id}/update_status", complaintHandler.UpdateStatus)
			r.Post("/complaints/{id}/rate", ratingHandler.Rate)
			r.Get("/complaints/{id}/messages", chatHandler.History)
			r.Get("/complaints/{id}/activity", activityHandler.ByComplaint)
			r.Post("/users/{id}/approve", userHandler.Approve)
			r.Get("/workers/{id}/rating", ratingHandler.WorkerRating)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, st: st, hub: hub}
}

func (s *testServer) user(t *testing.T, role models.Role, approved bool) (auth.Principal, string) {
	t.Helper()
	p := auth.Principal{UserID: uuid.New(), Username: strings.ToLower(string(role)), Role: role, IsApproved: approved}
	require.NoError(t, s.st.SaveUser(context.Background(), &models.User{
		ID: p.UserID, Username: p.Username, Role: role, IsApproved: approved,
	}))
	tok, err := auth.IssueToken(p, testSecret, time.Hour)
	require.NoError(t, err)
	return p, tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func errorKind(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	kind, _ := e["kind"].(string)
	return kind
}

func TestComplaintLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, citizenTok := s.user(t, models.RoleCitizen, false)
	worker, workerTok := s.user(t, models.RoleWorker, true)
	_, otherTok := s.user(t, models.RoleWorker, true)

	resp, body := s.do(t, http.MethodPost, "/api/v1/complaints", citizenTok, map[string]any{
		"title":      "Dumped rubble",
		"waste_type": "Construction",
		"location":   map[string]float64{"lat": 27.7, "lng": 85.3},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Equal(t, "Pending", body["status"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/accept", workerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/accept", otherTok, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorKind(body))

	for _, st := range []string{"In Progress", "Completed"} {
		resp, _ = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/update_status", workerTok, map[string]string{"status": st})
		require.Equal(t, http.StatusOK, resp.StatusCode, st)
	}

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/update_status", workerTok, map[string]string{"status": "In Progress"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_state", errorKind(body))

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/rate", citizenTok, map[string]int{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errorKind(body))

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/rate", citizenTok, map[string]int{"rating": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	agg := body["worker"].(map[string]any)
	assert.Equal(t, 3.0, agg["rating"])
	assert.Equal(t, 1.0, agg["total_ratings"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/rate", citizenTok, map[string]int{"rating": 4})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/v1/workers/"+worker.UserID.String()+"/rating", citizenTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["rating"])
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	_, citizenTok := s.user(t, models.RoleCitizen, false)
	_, pendingWorkerTok := s.user(t, models.RoleWorker, false)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/complaints", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/complaints", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/v1/complaints/"+uuid.NewString(), citizenTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorKind(body))

	resp, _ = s.do(t, http.MethodGet, "/api/v1/complaints/not-a-uuid", citizenTok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints", citizenTok, map[string]string{"title": "no category"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errorKind(body))

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints", citizenTok, map[string]string{"waste_type": "Organic"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, body = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/accept", pendingWorkerTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorKind(body))
}

func TestApprovalTakesEffectWithoutNewToken(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(t, models.RoleAdmin, true)
	_, citizenTok := s.user(t, models.RoleCitizen, false)
	worker, workerTok := s.user(t, models.RoleWorker, false)

	_, body := s.do(t, http.MethodPost, "/api/v1/complaints", citizenTok, map[string]string{"waste_type": "Plastic"})
	id := body["id"].(string)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/accept", workerTok, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/users/"+worker.UserID.String()+"/approve", adminTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/complaints/"+id+"/accept", workerTok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReady(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}

func TestChatOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	citizen, citizenTok := s.user(t, models.RoleCitizen, false)
	_, workerTok := s.user(t, models.RoleWorker, true)
	_, strangerTok := s.user(t, models.RoleCitizen, false)

	_, body := s.do(t, http.MethodPost, "/api/v1/complaints", citizenTok, map[string]string{"waste_type": "Organic"})
	complaintID := uuid.MustParse(body["id"].(string))
	room := chat.RoomID(complaintID)
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/ws/chat/" + room

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+strangerTok, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	citizenConn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+citizenTok, nil)
	require.NoError(t, err)
	defer citizenConn.Close()
	workerConn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+workerTok, nil)
	require.NoError(t, err)
	defer workerConn.Close()

	// Both clients must be registered before the first send.
	require.Eventually(t, func() bool { return s.hub.Subscribers(room) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, citizenConn.WriteJSON(chat.Inbound{Message: "Pile is near the temple"}))

	for _, conn := range []*websocket.Conn{citizenConn, workerConn} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var out chat.Outbound
		require.NoError(t, conn.ReadJSON(&out))
		assert.Equal(t, "Pile is near the temple", out.Message)
		assert.Equal(t, citizen.UserID, out.Sender)
		assert.Equal(t, room, out.Room)
	}

	// Errors go to the sender only.
	require.NoError(t, workerConn.WriteJSON(chat.Inbound{Message: "   "}))
	workerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var errFrame chat.ErrorFrame
	require.NoError(t, workerConn.ReadJSON(&errFrame))
	assert.Equal(t, "validation_error", string(errFrame.Error.Kind))

	resp, _ = s.do(t, http.MethodGet, "/api/v1/complaints/"+complaintID.String()+"/messages", citizenTok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	msgs, err := s.st.ListMessages(context.Background(), complaintID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
