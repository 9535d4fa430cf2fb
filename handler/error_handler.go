package handler

import (
	"go-draw-api/common"
	"net/http"
)

// AppHandler is an endpoint that reports failures as an *common.AppError
// instead of writing them itself.
type AppHandler func(http.ResponseWriter, *http.Request) *common.AppError

func ErrorHandlingMiddleware(next AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if appErr := next(w, r); appErr != nil {
			appErr.Send(w)
		}
	}
}
