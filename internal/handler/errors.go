package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/superlists/internal/middleware"
	"github.com/hitoshi/superlists/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限サイズ。
const maxBodyBytes = 64 << 10

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外は内部エラーとしてログに記録し、詳細を返さない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEmptyItem, model.ErrCodeDuplicateItem, model.ErrCodeInvalidEmail:
		return http.StatusBadRequest
	case model.ErrCodeListNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// readField はフォームまたはJSONボディから指定フィールドの文字列を読み取る。
// JSONで文字列以外の値が送られた場合は空文字列として扱う。
func readField(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return r.PostFormValue(name), nil
	}

	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && err != io.EOF {
		return "", fmt.Errorf("invalid JSON body: %w", err)
	}
	value, _ := body[name].(string)
	return value, nil
}
