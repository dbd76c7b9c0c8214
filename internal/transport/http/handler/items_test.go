package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thrifthaven-api/internal/config"
	"github.com/thrifthaven-api/internal/domain"
	jwtinfra "github.com/thrifthaven-api/internal/infrastructure/jwt"
	"github.com/thrifthaven-api/internal/transport/http/middleware"
)

// --- mock ---

type mockItemSvc struct{ mock.Mock }

func (m *mockItemSvc) Create(ctx context.Context, ownerID string, req domain.CreateItemRequest) (*domain.Item, error) {
	args := m.Called(ctx, ownerID, req)
	if it, _ := args.Get(0).(*domain.Item); it != nil {
		return it, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockItemSvc) List(ctx context.Context, callerID string, isAdmin bool) ([]domain.Item, error) {
	args := m.Called(ctx, callerID, isAdmin)
	return args.Get(0).([]domain.Item), args.Error(1)
}
func (m *mockItemSvc) ListPending(ctx context.Context) ([]domain.Item, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Item), args.Error(1)
}
func (m *mockItemSvc) Get(ctx context.Context, itemID, callerID string, isAdmin bool) (*domain.Item, error) {
	args := m.Called(ctx, itemID, callerID, isAdmin)
	if it, _ := args.Get(0).(*domain.Item); it != nil {
		return it, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockItemSvc) Update(ctx context.Context, itemID, callerID string, req domain.UpdateItemRequest) (*domain.Item, error) {
	args := m.Called(ctx, itemID, callerID, req)
	if it, _ := args.Get(0).(*domain.Item); it != nil {
		return it, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockItemSvc) Approve(ctx context.Context, itemID string) (string, error) {
	args := m.Called(ctx, itemID)
	return args.String(0), args.Error(1)
}
func (m *mockItemSvc) Decline(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}
func (m *mockItemSvc) AcceptOffer(ctx context.Context, itemID, callerID string) (*domain.Item, error) {
	args := m.Called(ctx, itemID, callerID)
	if it, _ := args.Get(0).(*domain.Item); it != nil {
		return it, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockItemSvc) DeclineOffer(ctx context.Context, itemID, callerID string) error {
	return m.Called(ctx, itemID, callerID).Error(0)
}
func (m *mockItemSvc) MarkSold(ctx context.Context, itemID, callerID string) error {
	return m.Called(ctx, itemID, callerID).Error(0)
}

// --- helpers ---

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

// bearerReq builds a request with a signed Bearer token for the given userID and role.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID, role string, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign(userID, role, "sess1")
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

// --- Create tests ---

func TestItemCreate_MissingClaims(t *testing.T) {
	h := NewItemHandler(&mockItemSvc{})
	r := httptest.NewRequest(http.MethodPost, "/v1/items", bytes.NewBufferString("{}"))
	rr := httptest.NewRecorder()
	h.Create(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestItemCreate_InvalidBody(t *testing.T) {
	p := newTestJWTProvider(t)
	h := NewItemHandler(&mockItemSvc{})
	r := bearerReq(t, p, http.MethodPost, "/v1/items", "u1", domain.RoleUser, []byte("not-json"))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Create), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestItemCreate_ValidationFailure(t *testing.T) {
	p := newTestJWTProvider(t)
	h := NewItemHandler(&mockItemSvc{})
	body, _ := json.Marshal(domain.CreateItemRequest{ListPrice: "10.00"}) // missing name
	r := bearerReq(t, p, http.MethodPost, "/v1/items", "u1", domain.RoleUser, body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Create), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestItemCreate_HappyPath(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	created := &domain.Item{ItemID: "i1", Name: "Vintage Lamp", ListPrice: "100.00", UserID: "u1"}
	svc.On("Create", mock.Anything, "u1", mock.Anything).Return(created, nil)
	h := NewItemHandler(svc)

	body, _ := json.Marshal(domain.CreateItemRequest{Name: "Vintage Lamp", ListPrice: "100.00"})
	r := bearerReq(t, p, http.MethodPost, "/v1/items", "u1", domain.RoleUser, body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Create), rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp domain.Item
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "i1", resp.ItemID)
	svc.AssertExpectations(t)
}

// --- List tests ---

func TestItemList_PassesAdminFlag(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("List", mock.Anything, "admin1", true).Return([]domain.Item{}, nil)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/items", "admin1", domain.RoleAdmin, nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.List), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- Approve tests ---

func TestItemApprove_ReturnsOfferPrice(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("Approve", mock.Anything, "i1").Return("80.50", nil)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/approve", "admin1", domain.RoleAdmin, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Approve), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp StatusEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "offer_sent", resp.Status)
	require.NotNil(t, resp.OfferPrice)
	assert.Equal(t, "80.50", *resp.OfferPrice)
	svc.AssertExpectations(t)
}

func TestItemApprove_ConflictOnDoubleOffer(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("Approve", mock.Anything, "i1").Return("", domain.ErrConflict)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/approve", "admin1", domain.RoleAdmin, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Approve), rr, r)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

// --- Decline tests ---

func TestItemDecline_ReturnsStatus(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("Decline", mock.Anything, "i1").Return(nil)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/decline", "admin1", domain.RoleAdmin, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Decline), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp StatusEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "declined_and_deleted", resp.Status)
}

// --- Owner decision tests ---

func TestItemAcceptOffer_ReturnsApproved(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("AcceptOffer", mock.Anything, "i1", "u1").Return(&domain.Item{ItemID: "i1", Approved: true}, nil)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/accept_offer", "u1", domain.RoleUser, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.AcceptOffer), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp StatusEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "accepted", resp.Status)
	require.NotNil(t, resp.Approved)
	assert.True(t, *resp.Approved)
	svc.AssertExpectations(t)
}

func TestItemAcceptOffer_ForbiddenForNonOwner(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("AcceptOffer", mock.Anything, "i1", "u2").Return(nil, domain.ErrForbidden)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/accept_offer", "u2", domain.RoleUser, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.AcceptOffer), rr, r)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestItemDeclineOffer_ReturnsStatus(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("DeclineOffer", mock.Anything, "i1", "u1").Return(nil)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/decline_offer", "u1", domain.RoleUser, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.DeclineOffer), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp StatusEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "declined_and_deleted_by_owner", resp.Status)
}

func TestItemMarkSold_ReturnsStatus(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("MarkSold", mock.Anything, "i1", "u1").Return(nil)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/items/i1/mark_sold", "u1", domain.RoleUser, nil)
	r = withChiID(r, "i1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.MarkSold), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp StatusEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "sold", resp.Status)
}

func TestItemGet_NotFound(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockItemSvc{}
	svc.On("Get", mock.Anything, "missing", "u1", false).Return(nil, domain.ErrNotFound)
	h := NewItemHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/items/missing", "u1", domain.RoleUser, nil)
	r = withChiID(r, "missing")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Get), rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
