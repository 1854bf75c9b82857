// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package handler

import (
	"net/http"

	"algojudge/internal/svc"

	"github.com/zeromicro/go-zero/rest/httpx"
)

type healthResponse struct {
	Status string `json:"status"`
}

func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OkJsonCtx(r.Context(), w, healthResponse{Status: "ok"})
	}
}
