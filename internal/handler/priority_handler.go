package handler

import (
	"net/http"

	"github.com/hitoshi/boiler/internal/model"
	"github.com/hitoshi/boiler/internal/repository"
	"github.com/hitoshi/boiler/internal/security"
)

// priorityFilters は一覧取得で使えるクエリパラメータ。
var priorityFilters = map[string]filterField{
	"name":  stringFilter("name"),
	"level": intFilter("level"),
}

// PriorityHandler は優先度マスタのHTTPハンドラー。
type PriorityHandler struct {
	repo      repository.Repository[model.Priority]
	sanitizer security.TextSanitizer
}

// NewPriorityHandler はPriorityHandlerを生成する。
func NewPriorityHandler(repo repository.Repository[model.Priority], sanitizer security.TextSanitizer) *PriorityHandler {
	return &PriorityHandler{repo: repo, sanitizer: sanitizer}
}

type priorityRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Level int    `json:"level" validate:"gte=0,lte=1000"`
}

// List は優先度の一覧を返す。
// GET /api/priorities?name=&level=
func (h *PriorityHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, apiErr := parseFilters(r.URL.Query(), priorityFilters)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	var (
		rows []model.Priority
		err  error
	)
	if len(filters) == 0 {
		rows, err = h.repo.All(r.Context())
	} else {
		rows, err = h.repo.WhereFields(r.Context(), filters)
	}
	if err != nil {
		handleServiceError(w, err, "priority", 0)
		return
	}
	if rows == nil {
		rows = []model.Priority{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Get は優先度を1件返す。
// GET /api/priorities/{id}
func (h *PriorityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseID(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "priority", id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Create は優先度を登録する。
// POST /api/priorities
func (h *PriorityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if apiErr := h.decode(w, r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	p := model.Priority{Name: req.Name, Level: req.Level}
	if _, err := h.repo.Insert(r.Context(), &p); err != nil {
		handleServiceError(w, err, "priority", 0)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Update は優先度を更新する。監査フィールドは既存行の値を引き継ぐ。
// PUT /api/priorities/{id}
func (h *PriorityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseID(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	var req priorityRequest
	if apiErr := h.decode(w, r, &req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "priority", id)
		return
	}
	p.Name = req.Name
	p.Level = req.Level

	if _, err := h.repo.Update(r.Context(), p); err != nil {
		handleServiceError(w, err, "priority", id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete は優先度を削除する。存在しないIDでも204を返す。
// DELETE /api/priorities/{id}
func (h *PriorityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseID(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err, "priority", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode はボディを検証し、名前をプレーンテキストに正規化する。
func (h *PriorityHandler) decode(w http.ResponseWriter, r *http.Request, req *priorityRequest) *model.APIError {
	if apiErr := decodeAndValidate(w, r, req); apiErr != nil {
		return apiErr
	}
	req.Name = h.sanitizer.PlainText(req.Name)
	if req.Name == "" {
		return model.NewValidationError("name: required")
	}
	return nil
}
