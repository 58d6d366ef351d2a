package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/repository"
	"github.com/hitoshi/boiler/internal/security"
)

// todoFilters は一覧取得で使えるクエリパラメータ。
var todoFilters = map[string]filterField{
	"title":      stringFilter("title"),
	"isComplete": boolFilter("is_complete"),
	"priorityId": intFilter("priority_id"),
}

// TodoHandler はTodoのHTTPハンドラー。
type TodoHandler struct {
	todos      repository.Repository[model.Todo]
	priorities repository.Repository[model.Priority]
	sanitizer  security.TextSanitizer
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(todos repository.Repository[model.Todo], priorities repository.Repository[model.Priority], sanitizer security.TextSanitizer) *TodoHandler {
	return &TodoHandler{todos: todos, priorities: priorities, sanitizer: sanitizer}
}

type todoRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	PriorityID  *int       `json:"priorityId" validate:"omitempty,gt=0"`
	IsComplete  bool       `json:"isComplete"`
	DueOn       *time.Time `json:"dueOn"`
}

// List はTodoの一覧を返す。参照先の優先度は含まない。
// GET /api/todos?title=&isComplete=&priorityId=
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, apiErr := parseFilters(r.URL.Query(), todoFilters)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	var (
		rows []model.Todo
		err  error
	)
	if len(filters) == 0 {
		rows, err = h.todos.All(r.Context())
	} else {
		rows, err = h.todos.WhereFields(r.Context(), filters)
	}
	if err != nil {
		handleServiceError(w, err, "todo", 0)
		return
	}
	if rows == nil {
		rows = []model.Todo{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Get はTodoを優先度とともに返す。
// GET /api/todos/{id}
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseID(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	t, err := h.todos.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "todo", id)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Create はTodoを登録する。
// POST /api/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if apiErr := h.decode(w, r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if err := h.checkPriority(r.Context(), req.PriorityID); err != nil {
		handleServiceError(w, err, "priority", 0)
		return
	}

	t := model.Todo{}
	req.applyTo(&t)
	id, err := h.todos.Insert(r.Context(), &t)
	if err != nil {
		handleServiceError(w, err, "todo", 0)
		return
	}
	h.respondTodo(w, r, id, http.StatusCreated, &t)
}

// Update はTodoを更新する。監査フィールドは既存行の値を引き継ぐ。
// PUT /api/todos/{id}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseID(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	var req todoRequest
	if apiErr := h.decode(w, r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	t, err := h.todos.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "todo", id)
		return
	}
	if err := h.checkPriority(r.Context(), req.PriorityID); err != nil {
		handleServiceError(w, err, "priority", 0)
		return
	}

	req.applyTo(t)
	t.Priority = nil
	if _, err := h.todos.Update(r.Context(), t); err != nil {
		handleServiceError(w, err, "todo", id)
		return
	}
	h.respondTodo(w, r, id, http.StatusOK, t)
}

// Delete はTodoを削除する。存在しないIDでも204を返す。
// DELETE /api/todos/{id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseID(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if err := h.todos.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err, "todo", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode はボディを検証し、タイトルと説明を無害化する。
func (h *TodoHandler) decode(w http.ResponseWriter, r *http.Request, req *todoRequest) *model.APIError {
	if apiErr := decodeAndValidate(w, r, req); apiErr != nil {
		return apiErr
	}
	req.Title = h.sanitizer.PlainText(req.Title)
	req.Description = h.sanitizer.RichText(req.Description)
	if req.Title == "" {
		return model.NewValidationError("title: required")
	}
	return nil
}

// checkPriority は指定された優先度が存在することを確認する。
func (h *TodoHandler) checkPriority(ctx context.Context, priorityID *int) error {
	if priorityID == nil {
		return nil
	}
	_, err := h.priorities.GetByID(ctx, *priorityID)
	if errors.Is(err, model.ErrNotFound) {
		return model.NewValidationError("priorityId: 存在しない優先度です")
	}
	return err
}

// respondTodo は書き込み後の行を優先度付きで読み直して返す。
// 読み直しに失敗した場合は書き込んだ値をそのまま返す。
func (h *TodoHandler) respondTodo(w http.ResponseWriter, r *http.Request, id, statusCode int, written *model.Todo) {
	if t, err := h.todos.GetByID(r.Context(), id); err == nil {
		written = t
	}
	writeJSON(w, statusCode, written)
}

func (req *todoRequest) applyTo(t *model.Todo) {
	t.Title = req.Title
	t.Description = req.Description
	t.PriorityID = req.PriorityID
	t.IsComplete = req.IsComplete
	t.DueOn = nil
	if req.DueOn != nil {
		due := req.DueOn.UTC()
		t.DueOn = &due
	}
}
