package handler

import (
	"net/http"

	"github.com/mavalente92/debatelens/internal/api/response"
	"github.com/mavalente92/debatelens/internal/cache"
	"github.com/mavalente92/debatelens/internal/store"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Version  string `json:"version"`
}

// NewHealthHandler returns the handler for GET /api/v1/health. A degraded
// dependency flips the overall status but keeps the endpoint at 200 so
// probes can read the component detail.
func NewHealthHandler(st store.Store, ca cache.Cache, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "up", Cache: "up", Version: version}

		if err := st.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "down"
		}
		if err := ca.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Cache = "down"
		}

		response.JSON(w, resp)
	}
}
