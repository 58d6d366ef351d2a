// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/boiler/internal/middleware"
	"github.com/hitoshi/boiler/internal/model"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIError はコードに対応するステータスで統一エラーフォーマットを書き込む。
func writeAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteAPIError(w, apiErr)
}

// handleServiceError はリポジトリ・サービス層のエラーをHTTPレスポンスに変換する。
// entityとidはRECORD_NOT_FOUNDのメッセージに使う。
func handleServiceError(w http.ResponseWriter, err error, entity string, id int) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		writeAPIError(w, apiErr)
	case errors.Is(err, model.ErrNotFound):
		writeAPIError(w, model.NewRecordNotFoundError(entity, id))
	case errors.Is(err, model.ErrInvalidOperation):
		logRejected(err, entity)
		writeAPIError(w, model.NewInvalidOperationError("IDが指定されていません"))
	case errors.Is(err, model.ErrIdentityOverflow):
		logRejected(err, entity)
		writeAPIError(w, model.NewInvalidOperationError("IDの上限を超えました"))
	case errors.Is(err, model.ErrUnknownField):
		logRejected(err, entity)
		writeAPIError(w, model.NewValidationError("存在しない検索条件です"))
	case errors.Is(err, model.ErrQueryAmbiguity):
		writeAPIError(w, model.NewAmbiguousMatchError())
	default:
		slog.Error("internal server error",
			slog.String("entity", entity),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// logRejected はクライアントに返さない内部エラーの詳細をログに残す。
func logRejected(err error, entity string) {
	slog.Warn("request rejected",
		slog.String("entity", entity),
		slog.String("error", err.Error()),
	)
}

// parseID はURLパラメータ{id}を正の整数として取り出す。
func parseID(r *http.Request) (int, *model.APIError) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, model.NewValidationError("id: 正の整数を指定してください")
	}
	return id, nil
}
