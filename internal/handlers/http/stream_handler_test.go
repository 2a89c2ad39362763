package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"fancast/internal/core/domain"
	"fancast/internal/core/services"
	"fancast/internal/infrastructure/middleware"
	"fancast/internal/infrastructure/payments"
	"fancast/internal/infrastructure/realtime"
	"fancast/internal/infrastructure/repositories/memory"
)

type handlerFixture struct {
	router     *gin.Engine
	auth       services.AuthService
	streams    *memory.MemoryStreamRepository
	purchases  *memory.MemoryPurchaseRepository
	identities *memory.MemoryIdentityRepository
	subs       *memory.MemorySubscriptionRepository
	hub        *realtime.Hub
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()

	streams := memory.NewMemoryStreamRepository().(*memory.MemoryStreamRepository)
	subs := memory.NewMemorySubscriptionRepository()
	purchases := memory.NewMemoryPurchaseRepository()
	identities := memory.NewMemoryIdentityRepository()

	identities.Put(&domain.Identity{ID: "creator-1", DisplayName: "Creator", Role: domain.RoleCreator})
	identities.Put(&domain.Identity{ID: "viewer-1", DisplayName: "Viewer", Role: domain.RoleStudent})

	authService := services.NewAuthService("test-secret", time.Hour, time.Hour, identities)
	accessService := services.NewAccessService(subs, purchases, log)

	registry := realtime.NewRegistry()
	hub := realtime.NewHub(nil, log)
	relay := realtime.NewRelay(registry, hub, nil, log)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	handler := NewStreamHandler(StreamHandlerDeps{
		Streams:       streams,
		Subscriptions: subs,
		Purchases:     purchases,
		Identities:    identities,
		Access:        accessService,
		Payments:      payments.NewSandboxProcessor(log),
		Fanout:        hub,
		Registry:      registry,
		Relay:         relay,
		AuthService:   authService,
		Logger:        log,
	})
	handler.SetupRoutes(router)

	return &handlerFixture{
		router:     router,
		auth:       authService,
		streams:    streams,
		purchases:  purchases,
		identities: identities,
		subs:       subs,
		hub:        hub,
	}
}

func (f *handlerFixture) token(t *testing.T, userID domain.UserID) string {
	t.Helper()
	identity, err := f.identities.GetByID(context.Background(), userID)
	assert.NoError(t, err)
	token, err := f.auth.GenerateToken(identity)
	assert.NoError(t, err)
	return token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) seedPaidStream(t *testing.T) domain.StreamID {
	t.Helper()
	stream := &domain.LiveStream{
		ID:        "stream-1",
		Title:     "members only",
		CreatorID: "creator-1",
		Live:      true,
		Policy: domain.ContentAccessPolicy{
			Type:       domain.AccessPaid,
			PriceCents: 500,
			OwnerID:    "creator-1",
		},
		StartedAt: time.Now(),
	}
	assert.NoError(t, f.streams.Create(context.Background(), stream))
	return stream.ID
}

func TestStreamHandler_CreateRequiresCreatorRole(t *testing.T) {
	f := newHandlerFixture(t)

	body := map[string]interface{}{"title": "my stream", "access_type": "free"}

	w := f.do(t, http.MethodPost, "/api/v1/streams", f.token(t, "viewer-1"), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/streams", f.token(t, "creator-1"), body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"live":true`)
}

func TestStreamHandler_CreateRejectsFreePricedPolicy(t *testing.T) {
	f := newHandlerFixture(t)

	body := map[string]interface{}{"title": "paid", "access_type": "paid", "price_cents": 0}
	w := f.do(t, http.MethodPost, "/api/v1/streams", f.token(t, "creator-1"), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamHandler_PaidStreamLockedForAnonymous(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.seedPaidStream(t)

	w := f.do(t, http.MethodGet, "/api/v1/streams/"+string(id), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"locked":true`)
}

func TestStreamHandler_PurchaseUnlocksStream(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.seedPaidStream(t)
	token := f.token(t, "viewer-1")

	w := f.do(t, http.MethodGet, "/api/v1/streams/"+string(id), token, nil)
	assert.Contains(t, w.Body.String(), `"locked":true`)

	w = f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/purchase", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "provider_ref")

	w = f.do(t, http.MethodGet, "/api/v1/streams/"+string(id), token, nil)
	assert.Contains(t, w.Body.String(), `"locked":false`)
}

func TestStreamHandler_PurchaseIsIdempotent(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.seedPaidStream(t)
	token := f.token(t, "viewer-1")

	w1 := f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/purchase", token, nil)
	assert.Equal(t, http.StatusOK, w1.Code)

	// Buying again returns the existing purchase instead of charging twice.
	w2 := f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/purchase", token, nil)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, w1.Body.String(), w2.Body.String())
}

func TestStreamHandler_PurchaseOfFreeStreamRejected(t *testing.T) {
	f := newHandlerFixture(t)
	stream := &domain.LiveStream{
		ID:        "free-1",
		Title:     "open",
		CreatorID: "creator-1",
		Live:      true,
		Policy:    domain.ContentAccessPolicy{Type: domain.AccessFree, OwnerID: "creator-1"},
		StartedAt: time.Now(),
	}
	assert.NoError(t, f.streams.Create(context.Background(), stream))

	w := f.do(t, http.MethodPost, "/api/v1/streams/free-1/purchase", f.token(t, "viewer-1"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamHandler_EndRequiresOwner(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.seedPaidStream(t)

	w := f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/end", f.token(t, "viewer-1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/end", f.token(t, "creator-1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"live":false`)
}

func TestStreamHandler_TipRejectedWhenNotLive(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.seedPaidStream(t)

	f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/end", f.token(t, "creator-1"), nil)

	w := f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/tip",
		f.token(t, "viewer-1"), map[string]interface{}{"amount_cents": 500})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStreamHandler_TipRejectsNonPositiveAmount(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.seedPaidStream(t)

	w := f.do(t, http.MethodPost, "/api/v1/streams/"+string(id)+"/tip",
		f.token(t, "viewer-1"), map[string]interface{}{"amount_cents": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamHandler_UnknownStreamIs404(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/streams/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
