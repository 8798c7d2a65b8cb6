package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "seva/pkg/errors"
	"seva/pkg/logger"
	"seva/pkg/middleware"
	"seva/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockListingService struct {
	createFunc  func(ctx context.Context, ownerID string, input *model.ListingInput) (*model.Listing, error)
	nearbyFunc  func(ctx context.Context, lat, lng, radius float64, limit int) ([]*model.Listing, error)
	reserveFunc func(ctx context.Context, id string, reserver model.Principal) (*model.Listing, error)
	ownerFunc   func(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error)
}

func (m *mockListingService) CreateAndBroadcast(ctx context.Context, ownerID string, input *model.ListingInput) (*model.Listing, error) {
	return m.createFunc(ctx, ownerID, input)
}

func (m *mockListingService) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	return nil, apperrors.NotFoundWithID("Listing", id)
}

func (m *mockListingService) FindNearby(ctx context.Context, lat, lng, radius float64, limit int) ([]*model.Listing, error) {
	return m.nearbyFunc(ctx, lat, lng, radius, limit)
}

func (m *mockListingService) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error) {
	return m.ownerFunc(ctx, ownerID, limit)
}

func (m *mockListingService) Reserve(ctx context.Context, id string, reserver model.Principal) (*model.Listing, error) {
	return m.reserveFunc(ctx, id, reserver)
}

func (m *mockListingService) Complete(ctx context.Context, id, actorID string) (*model.Listing, error) {
	return nil, apperrors.Conflict("Listing has not been reserved")
}

func newRouter(svc *mockListingService) *httprouter.Router {
	router := httprouter.New()
	NewListingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithPrincipal(r.Context(), model.Principal{UserID: userID, Name: "Bob"}))
}

func TestCreate_PassesOwnerAndHeaderKey(t *testing.T) {
	var gotOwner, gotKey string
	svc := &mockListingService{
		createFunc: func(ctx context.Context, ownerID string, input *model.ListingInput) (*model.Listing, error) {
			gotOwner, gotKey = ownerID, input.IdempotencyKey
			return &model.Listing{ID: "l1", OwnerID: ownerID, Title: input.Title}, nil
		},
	}
	store := middleware.NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()
	handler := middleware.Idempotency(store, "")(newRouter(svc))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", strings.NewReader(`{"title":"Soup"}`))
	req.Header.Set(middleware.IdempotencyHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, asUser(req, "alice"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotOwner != "alice" || gotKey != "abc" {
		t.Errorf("service got owner %q key %q", gotOwner, gotKey)
	}
}

func TestCreate_Errors(t *testing.T) {
	svc := &mockListingService{
		createFunc: func(ctx context.Context, ownerID string, input *model.ListingInput) (*model.Listing, error) {
			return nil, apperrors.Validation("Listing validation failed", nil)
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name   string
		body   string
		user   string
		status int
	}{
		{"anonymous", `{}`, "", http.StatusUnauthorized},
		{"malformed body", `{"title":`, "alice", http.StatusBadRequest},
		{"validation", `{"title":"x"}`, "alice", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", strings.NewReader(tt.body))
			if tt.user != "" {
				req = asUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestNear_QueryParameters(t *testing.T) {
	var gotLat, gotLng, gotRadius float64
	svc := &mockListingService{
		nearbyFunc: func(ctx context.Context, lat, lng, radius float64, limit int) ([]*model.Listing, error) {
			gotLat, gotLng, gotRadius = lat, lng, radius
			return []*model.Listing{}, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"valid", "lat=40.7&lng=-74&radius=2500", http.StatusOK},
		{"missing lng", "lat=40.7", http.StatusBadRequest},
		{"bad lat", "lat=north&lng=-74", http.StatusBadRequest},
		{"bad limit", "lat=40.7&lng=-74&limit=ten", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/listings/near?"+tt.query, nil))
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}

	if gotLat != 40.7 || gotLng != -74 || gotRadius != 2500 {
		t.Errorf("unexpected parameters %v %v %v", gotLat, gotLng, gotRadius)
	}
}

func TestReserve_ResponseShape(t *testing.T) {
	svc := &mockListingService{
		reserveFunc: func(ctx context.Context, id string, reserver model.Principal) (*model.Listing, error) {
			if id == "taken" {
				return nil, apperrors.Conflict("Listing is no longer available")
			}
			by := reserver.UserID
			return &model.Listing{ID: id, Title: "Soup", Status: model.StatusReserved, ReservedBy: &by}, nil
		},
	}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/listings/id/l1/reserve", nil), "bob"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data struct {
			ListingID string `json:"listing_id"`
			Title     string `json:"title"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ListingID != "l1" || body.Data.Title != "Soup" {
		t.Errorf("unexpected body %+v", body.Data)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/listings/id/taken/reserve", nil), "bob"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&mockListingService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/listings/id/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMine(t *testing.T) {
	var gotOwner string
	var gotLimit int
	svc := &mockListingService{
		ownerFunc: func(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error) {
			gotOwner, gotLimit = ownerID, limit
			return []*model.Listing{{ID: "l2", OwnerID: ownerID}, {ID: "l1", OwnerID: ownerID}}, nil
		},
	}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/listings/mine", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a principal, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/listings/mine?limit=5", nil), "alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotOwner != "alice" || gotLimit != 5 {
		t.Errorf("service got owner %q limit %d", gotOwner, gotLimit)
	}
	if !strings.Contains(rec.Body.String(), `"l2"`) {
		t.Errorf("listings missing from body: %s", rec.Body.String())
	}
}
