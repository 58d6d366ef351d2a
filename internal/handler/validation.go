package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/boiler/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

var validate = newValidator()

// newValidator はエラーのフィールド名にJSONキーを使うバリデーターを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate はJSONボディをdstにデコードし、validateタグで検証する。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}
	return validateStruct(dst)
}

func validateStruct(v any) *model.APIError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return model.NewValidationError(describeValidationErrors(verrs))
	}
	return model.NewInvalidRequestError()
}

// describeValidationErrors は"field: tag"形式の一覧を返す。
func describeValidationErrors(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// filterField はクエリ文字列の1パラメータとカラムの対応。
type filterField struct {
	column string
	parse  func(string) (any, error)
}

func stringFilter(column string) filterField {
	return filterField{column: column, parse: func(s string) (any, error) { return s, nil }}
}

func intFilter(column string) filterField {
	return filterField{column: column, parse: func(s string) (any, error) { return strconv.Atoi(s) }}
}

func boolFilter(column string) filterField {
	return filterField{column: column, parse: func(s string) (any, error) { return strconv.ParseBool(s) }}
}

// parseFilters はクエリ文字列から等価条件を組み立てる。
// 定義にないパラメータは無視する。条件が無い場合は空のmapを返す。
func parseFilters(q url.Values, fields map[string]filterField) (map[string]any, *model.APIError) {
	filters := make(map[string]any)
	for key, field := range fields {
		if !q.Has(key) {
			continue
		}
		v, err := field.parse(q.Get(key))
		if err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("%s: 値を解釈できません", key))
		}
		filters[field.column] = v
	}
	return filters, nil
}
