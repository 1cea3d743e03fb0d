package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/store/memstore"
	"weHabitAPI/middleware"
	"weHabitAPI/services"
)

type testServer struct {
	store   *memstore.Store
	effects *services.EffectDispatcher
	router  *mux.Router
	now     time.Time
}

// newTestServer wires the real services on an in-memory store. Requests carry
// the user id through X-Test-User instead of a Clerk token.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{store: memstore.New(), now: time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)}
	clk := clock.New(time.UTC, func() time.Time { return ts.now })
	log := zap.NewNop()

	tx := services.NewTxRunner(ts.store, 3, log)
	ts.effects = services.NewEffectDispatcher(1, 32, 1, log)
	t.Cleanup(ts.effects.Stop)

	shields := services.NewShieldService(tx, clk, 5, log)
	users := services.NewUserService(tx, clk, shields, 1, log)
	feed := services.NewFeedService(ts.store, clk, log)
	habits := services.NewHabitService(tx, clk, shields, ts.effects, log)
	challenges := services.NewChallengeService(tx, clk, ts.effects, log)
	ts.effects.SetActivityEmitter(feed)
	ts.effects.SetExperienceAwarder(users)
	ts.effects.SetChallengePropagator(challenges)

	habitHandler := NewHabitHandler(habits, log)
	challengeHandler := NewChallengeHandler(challenges, log)
	userHandler := NewUserHandler(users, shields, feed, log)
	webhookHandler := NewWebhookHandler(users, "", log)

	r := mux.NewRouter()
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-User"); id != "" {
				r = r.WithContext(middleware.WithClerkID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	api.HandleFunc("/user/profile", userHandler.GetProfile).Methods("GET")
	api.HandleFunc("/user/shields", userHandler.GetShields).Methods("GET")
	api.HandleFunc("/user/feed", userHandler.GetFeed).Methods("GET")
	api.HandleFunc("/habits", habitHandler.ListHabits).Methods("GET")
	api.HandleFunc("/habits", habitHandler.CreateHabit).Methods("POST")
	api.HandleFunc("/habits/move-category", habitHandler.MoveToCategory).Methods("POST")
	api.HandleFunc("/habits/{id}", habitHandler.DeleteHabit).Methods("DELETE")
	api.HandleFunc("/habits/{id}/check-in", habitHandler.CheckIn).Methods("POST")
	api.HandleFunc("/habits/{id}/check-in", habitHandler.UndoCheckIn).Methods("DELETE")
	api.HandleFunc("/habits/{id}/calendar", habitHandler.Calendar).Methods("GET")
	api.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	api.HandleFunc("/challenges/{id}/check-in", challengeHandler.CheckIn).Methods("POST")
	api.HandleFunc("/challenges/{id}/standings", challengeHandler.Standings).Methods("GET")
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}
