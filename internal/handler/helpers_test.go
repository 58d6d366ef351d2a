package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm/clause"

	"github.com/hitoshi/boiler/internal/middleware"
	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/session"
)

// --- モック定義 ---

// mockRepo はrepository.Repositoryのモック実装。
type mockRepo[T model.Entity] struct {
	allFn         func(ctx context.Context) ([]T, error)
	getByIDFn     func(ctx context.Context, id int) (*T, error)
	deleteFn      func(ctx context.Context, id int) error
	insertFn      func(ctx context.Context, m *T) (int, error)
	updateFn      func(ctx context.Context, m *T) (int, error)
	whereFn       func(ctx context.Context, pred clause.Expression) ([]T, error)
	whereFieldsFn func(ctx context.Context, fields map[string]any) ([]T, error)
}

func (m *mockRepo[T]) All(ctx context.Context) ([]T, error) {
	if m.allFn != nil {
		return m.allFn(ctx)
	}
	return nil, nil
}

func (m *mockRepo[T]) GetByID(ctx context.Context, id int) (*T, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrNotFound
}

func (m *mockRepo[T]) Delete(ctx context.Context, id int) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockRepo[T]) Insert(ctx context.Context, v *T) (int, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, v)
	}
	return 0, nil
}

func (m *mockRepo[T]) Update(ctx context.Context, v *T) (int, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, v)
	}
	return (*v).GetID(), nil
}

func (m *mockRepo[T]) Where(ctx context.Context, pred clause.Expression) ([]T, error) {
	if m.whereFn != nil {
		return m.whereFn(ctx, pred)
	}
	return nil, nil
}

func (m *mockRepo[T]) WhereFields(ctx context.Context, fields map[string]any) ([]T, error) {
	if m.whereFieldsFn != nil {
		return m.whereFieldsFn(ctx, fields)
	}
	return nil, nil
}

func (m *mockRepo[T]) Single(ctx context.Context, pred clause.Expression) (*T, error) {
	return nil, model.ErrQueryAmbiguity
}

func (m *mockRepo[T]) SingleOrDefault(ctx context.Context, pred clause.Expression) *T {
	return nil
}

// fakeSource はセッションIDごとに固定のセッションを返すsession.Source。
type fakeSource struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func (f *fakeSource) GetOrCreate(_ context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return &session.Session{ID: id}, nil
}

const (
	userSessionID  = "11111111-1111-4111-8111-111111111111"
	adminSessionID = "22222222-2222-4222-8222-222222222222"
	anonSessionID  = "33333333-3333-4333-8333-333333333333"
)

func newFakeSource() *fakeSource {
	return &fakeSource{sessions: map[string]*session.Session{
		userSessionID: {
			ID: userSessionID, IsAuthenticated: true, UserAuthID: 1, UserAuthName: "alice",
			UserProfile: &session.Profile{ID: 1, Username: "alice"},
		},
		adminSessionID: {
			ID: adminSessionID, IsAuthenticated: true, UserAuthID: 2, UserAuthName: "admin",
			UserProfile: &session.Profile{ID: 2, Username: "admin", IsAdmin: true},
		},
	}}
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// withSession はセッションミドルウェアを通してハンドラーを呼び出す。
func withSession(h http.HandlerFunc, sessionID string, req *http.Request) *httptest.ResponseRecorder {
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	w := httptest.NewRecorder()
	middleware.NewSessionMiddleware(newFakeSource(), middleware.SessionConfig{})(h).ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewBuffer(b)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != code {
		t.Errorf("code = %q, want %q", body["code"], code)
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
