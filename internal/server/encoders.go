package server

import (
	"encoding/json"

	"kiosk-go/internal/service"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport/http"
)

type errorBody struct {
	Error string `json:"error"`
}

// ErrorEncoder 输出 {"error": 本地化消息}，状态码取 kratos code
func ErrorEncoder(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.FromError(err)
	b, mErr := json.Marshal(errorBody{Error: service.Localize(r, se)})
	if mErr != nil {
		w.WriteHeader(500)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(int(se.Code))
	_, _ = w.Write(b)
}
