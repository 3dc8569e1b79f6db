package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/infrastructure/pebble"
)

type mockAuthenticator struct {
	LoginFunc func(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
}

func (m *mockAuthenticator) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	return m.LoginFunc(ctx, req)
}

func merchantSession() domain.Session {
	return domain.Session{Subject: "acme", Role: domain.RoleMerchant, DisplayName: "acme", Token: "tok-1"}
}

func TestStore_SetAndCurrent(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())

	_, ok := store.Current()
	assert.False(t, ok)
	assert.Equal(t, "", store.Token())

	require.NoError(t, store.Set(merchantSession()))

	sess, ok := store.Current()
	assert.True(t, ok)
	assert.Equal(t, "acme", sess.Subject)
	assert.Equal(t, "tok-1", store.Token())
}

func TestStore_SetRejectsIncompleteSession(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())

	err := store.Set(domain.Session{Subject: "acme"})

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestStore_ClearRunsListeners(t *testing.T) {
	persister := NewMemoryPersister()
	store := NewStore(persister, zap.NewNop())
	require.NoError(t, store.Set(merchantSession()))

	calls := 0
	store.OnClear(func() { calls++ })
	store.OnClear(func() { calls++ })

	require.NoError(t, store.Clear())

	assert.Equal(t, 2, calls)
	_, ok := store.Current()
	assert.False(t, ok)
	_, persisted, _ := persister.Load()
	assert.False(t, persisted)
}

func TestStore_RestoreFromPebble(t *testing.T) {
	dir := t.TempDir()
	kv, err := pebble.Open(dir)
	require.NoError(t, err)

	first := NewStore(NewKVPersister(kv), zap.NewNop())
	require.NoError(t, first.Set(merchantSession()))
	require.NoError(t, kv.Close())

	kv, err = pebble.Open(dir)
	require.NoError(t, err)
	defer kv.Close()

	second := NewStore(NewKVPersister(kv), zap.NewNop())
	restored, err := second.Restore()

	require.NoError(t, err)
	assert.True(t, restored)
	sess, ok := second.Current()
	assert.True(t, ok)
	assert.Equal(t, merchantSession(), sess)

	require.NoError(t, second.Clear())
	third := NewStore(NewKVPersister(kv), zap.NewNop())
	restored, err = third.Restore()
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestService_Login(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())
	auth := &mockAuthenticator{
		LoginFunc: func(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
			assert.Equal(t, "ops1", req.Username)
			return &dto.LoginResponse{AccessToken: "jwt", Role: "operations_team", Username: "ops1"}, nil
		},
	}
	svc := NewService(store, auth, zap.NewNop())

	sess, err := svc.Login(context.Background(), " ops1 ", "secret")

	require.NoError(t, err)
	assert.Equal(t, domain.RoleOperations, sess.Role)
	assert.Equal(t, "jwt", store.Token())
}

func TestService_Login_Validation(t *testing.T) {
	svc := NewService(NewStore(NewMemoryPersister(), zap.NewNop()), &mockAuthenticator{}, zap.NewNop())

	_, err := svc.Login(context.Background(), "", "")

	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Details, 2)
}

func TestService_Login_RemoteRejects(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())
	auth := &mockAuthenticator{
		LoginFunc: func(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
			return nil, apperrors.NewRejectedError(401, "Invalid credentials")
		},
	}
	svc := NewService(store, auth, zap.NewNop())

	_, err := svc.Login(context.Background(), "acme", "wrong")

	var re *apperrors.RejectedError
	assert.True(t, errors.As(err, &re))
	_, ok := store.Current()
	assert.False(t, ok)
}

func TestController_CurrentAndLogout(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())
	require.NoError(t, store.Set(merchantSession()))
	cleared := false
	store.OnClear(func() { cleared = true })
	ctrl := NewController(NewService(store, &mockAuthenticator{}, zap.NewNop()), zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.HandleCurrent(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subject":"acme"`)
	assert.NotContains(t, rec.Body.String(), "tok-1")

	rec = httptest.NewRecorder()
	ctrl.HandleLogout(rec, httptest.NewRequest(http.MethodPost, "/session/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, cleared)

	rec = httptest.NewRecorder()
	ctrl.HandleCurrent(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)
}

func TestStore_ClearIfTokenIgnoresStaleToken(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())
	require.NoError(t, store.Set(merchantSession()))
	cleared := 0
	store.OnClear(func() { cleared++ })

	ok, err := store.ClearIfToken("tok-old")
	require.NoError(t, err)
	assert.False(t, ok)
	_, active := store.Current()
	assert.True(t, active)

	ok, err = store.ClearIfToken("tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, active = store.Current()
	assert.False(t, active)
	assert.Equal(t, 1, cleared)
}

func TestStore_SetRunsOnSetListeners(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())
	var got domain.Session
	store.OnSet(func(sess domain.Session) { got = sess })

	require.NoError(t, store.Set(merchantSession()))

	assert.Equal(t, "acme", got.Subject)
}

func TestController_Login(t *testing.T) {
	store := NewStore(NewMemoryPersister(), zap.NewNop())
	auth := &mockAuthenticator{
		LoginFunc: func(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
			if req.Password != "secret" {
				return nil, apperrors.NewRejectedError(http.StatusUnauthorized, "Incorrect username or password")
			}
			return &dto.LoginResponse{AccessToken: "tok-1", Role: "merchant", Username: req.Username}, nil
		},
	}
	ctrl := NewController(NewService(store, auth, zap.NewNop()), zap.NewNop())

	rec := httptest.NewRecorder()
	ctrl.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{"username":"acme","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	ctrl.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{"username":"","password":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ctrl.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{"username":"acme","password":"secret"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "tok-1")
	assert.Equal(t, "tok-1", store.Token())
}
