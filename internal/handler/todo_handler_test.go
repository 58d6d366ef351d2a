package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/security"
)

func intPtr(v int) *int { return &v }

// priorityRepoWith は指定IDの優先度だけが存在するリポジトリを返す。
func priorityRepoWith(ids ...int) *mockRepo[model.Priority] {
	return &mockRepo[model.Priority]{
		getByIDFn: func(ctx context.Context, id int) (*model.Priority, error) {
			for _, existing := range ids {
				if existing == id {
					return &model.Priority{ID: id, Name: fmt.Sprintf("P%d", id), Level: id}, nil
				}
			}
			return nil, fmt.Errorf("priority %d: %w", id, model.ErrNotFound)
		},
	}
}

func TestTodoHandler_List_WithFilters(t *testing.T) {
	var gotFields map[string]any
	todos := &mockRepo[model.Todo]{
		whereFieldsFn: func(ctx context.Context, fields map[string]any) ([]model.Todo, error) {
			gotFields = fields
			return []model.Todo{{ID: 1, Title: "Buy milk", IsComplete: true, PriorityID: intPtr(2)}}, nil
		},
	}
	h := NewTodoHandler(todos, priorityRepoWith(), security.NewTextSanitizer())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/todos?isComplete=true&priorityId=2", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotFields["is_complete"] != true || gotFields["priority_id"] != 2 || len(gotFields) != 2 {
		t.Errorf("fields = %#v", gotFields)
	}

	var got []model.Todo
	json.NewDecoder(w.Body).Decode(&got)
	if len(got) != 1 || got[0].Title != "Buy milk" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestTodoHandler_List_InvalidBool_ReturnsBadRequest(t *testing.T) {
	h := NewTodoHandler(&mockRepo[model.Todo]{}, priorityRepoWith(), security.NewTextSanitizer())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/todos?isComplete=maybe", nil))

	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeValidationFailed)
}

func TestTodoHandler_Get_IncludesPriority(t *testing.T) {
	todos := &mockRepo[model.Todo]{
		getByIDFn: func(ctx context.Context, id int) (*model.Todo, error) {
			return &model.Todo{
				ID: id, Title: "Write report", PriorityID: intPtr(1),
				Priority: &model.Priority{ID: 1, Name: "High", Level: 3},
			}, nil
		},
	}
	h := NewTodoHandler(todos, priorityRepoWith(1), security.NewTextSanitizer())

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/todos/5", nil), "id", "5")
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	p, ok := got["priority"].(map[string]any)
	if !ok || p["name"] != "High" {
		t.Errorf("priority = %v", got["priority"])
	}
	if got["priorityId"] != float64(1) {
		t.Errorf("priorityId = %v", got["priorityId"])
	}
}

func TestTodoHandler_Create_SanitizesAndRereads(t *testing.T) {
	var inserted model.Todo
	todos := &mockRepo[model.Todo]{
		insertFn: func(ctx context.Context, m *model.Todo) (int, error) {
			m.ID = 10
			inserted = *m
			return 10, nil
		},
		getByIDFn: func(ctx context.Context, id int) (*model.Todo, error) {
			row := inserted
			row.Priority = &model.Priority{ID: 2, Name: "P2", Level: 2}
			return &row, nil
		},
	}
	h := NewTodoHandler(todos, priorityRepoWith(2), security.NewTextSanitizer())

	due := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("JST", 9*60*60))
	body := jsonBody(t, map[string]any{
		"title":       "<b>Buy</b> milk",
		"description": `<p>2 bottles</p><script>alert(1)</script>`,
		"priorityId":  2,
		"dueOn":       due,
	})
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/todos", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}
	if inserted.Title != "Buy milk" {
		t.Errorf("title = %q, want plain text", inserted.Title)
	}
	if !strings.Contains(inserted.Description, "<p>2 bottles</p>") || strings.Contains(inserted.Description, "script") {
		t.Errorf("description = %q", inserted.Description)
	}
	if inserted.DueOn == nil || inserted.DueOn.Location() != time.UTC || !inserted.DueOn.Equal(due) {
		t.Errorf("dueOn = %v, want %v in UTC", inserted.DueOn, due)
	}

	var got model.Todo
	json.NewDecoder(w.Body).Decode(&got)
	if got.ID != 10 || got.Priority == nil || got.Priority.Name != "P2" {
		t.Errorf("response = %+v", got)
	}
}

func TestTodoHandler_Create_UnknownPriority_ReturnsBadRequest(t *testing.T) {
	todos := &mockRepo[model.Todo]{
		insertFn: func(ctx context.Context, m *model.Todo) (int, error) {
			t.Error("Insert should not be called")
			return 0, nil
		},
	}
	h := NewTodoHandler(todos, priorityRepoWith(1), security.NewTextSanitizer())

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"title":"x","priorityId":99}`)))

	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeValidationFailed)
}

func TestTodoHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"description":"d"}`},
		{"title too long", `{"title":"` + strings.Repeat("a", 201) + `"}`},
		{"description too long", `{"title":"t","description":"` + strings.Repeat("a", 2001) + `"}`},
		{"zero priority id", `{"title":"t","priorityId":0}`},
		{"title only markup", `{"title":"<i> </i>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTodoHandler(&mockRepo[model.Todo]{}, priorityRepoWith(1), security.NewTextSanitizer())

			w := httptest.NewRecorder()
			h.Create(w, httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(tt.body)))

			assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeValidationFailed)
		})
	}
}

func TestTodoHandler_Update_KeepsAuditAndDropsStalePriority(t *testing.T) {
	var updated model.Todo
	todos := &mockRepo[model.Todo]{
		getByIDFn: func(ctx context.Context, id int) (*model.Todo, error) {
			if updated.ID != 0 {
				u := updated
				return &u, nil
			}
			return &model.Todo{
				ID: id, Title: "Old", PriorityID: intPtr(1),
				Priority: &model.Priority{ID: 1, Name: "P1"},
				Audit:    model.Audit{CreatedBy: "alice"},
			}, nil
		},
		updateFn: func(ctx context.Context, m *model.Todo) (int, error) {
			updated = *m
			return m.ID, nil
		},
	}
	h := NewTodoHandler(todos, priorityRepoWith(1, 2), security.NewTextSanitizer())

	req := httptest.NewRequest(http.MethodPut, "/api/todos/5", strings.NewReader(`{"title":"New","priorityId":2,"isComplete":true}`))
	req = withChiURLParam(req, "id", "5")
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if updated.Title != "New" || !updated.IsComplete || updated.PriorityID == nil || *updated.PriorityID != 2 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Priority != nil {
		t.Error("stale priority reference should be cleared before update")
	}
	if updated.CreatedBy != "alice" {
		t.Errorf("CreatedBy = %q, want alice", updated.CreatedBy)
	}
}

func TestTodoHandler_Update_NotFound(t *testing.T) {
	h := NewTodoHandler(&mockRepo[model.Todo]{}, priorityRepoWith(), security.NewTextSanitizer())

	req := httptest.NewRequest(http.MethodPut, "/api/todos/5", strings.NewReader(`{"title":"New"}`))
	req = withChiURLParam(req, "id", "5")
	w := httptest.NewRecorder()
	h.Update(w, req)

	assertAPIError(t, w, http.StatusNotFound, model.ErrCodeRecordNotFound)
}

func TestTodoHandler_Delete(t *testing.T) {
	var deletedID int
	todos := &mockRepo[model.Todo]{
		deleteFn: func(ctx context.Context, id int) error {
			deletedID = id
			return nil
		},
	}
	h := NewTodoHandler(todos, priorityRepoWith(), security.NewTextSanitizer())

	req := withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/todos/8", nil), "id", "8")
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusNoContent || deletedID != 8 {
		t.Errorf("status = %d, deleted = %d", w.Code, deletedID)
	}
}
