package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// RoleVerifier reports whether the built-in roles are present.
// *roles.Catalog satisfies it.
type RoleVerifier interface {
	Verify(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Roles  RoleVerifier
	Log    *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client and logger.
func NewHandler(client *mongo.Client, roles RoleVerifier, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Roles:  roles,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Roles    string `json:"roles,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "roles":"seeded" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
//
// Missing roles keep the 200 but report "status":"degraded"; membership
// writes fail until the catalog is seeded.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Roles != nil {
		resp.Roles = "seeded"
		if err := h.Roles.Verify(ctx); err != nil {
			h.Log.Warn("health-check: role catalog", zap.Error(err))
			resp.Status = "degraded"
			resp.Roles = "missing"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// ServeRoot handles GET / under the API base path.
func ServeRoot(w http.ResponseWriter, r *http.Request) {
	respond.Message(w, http.StatusOK, "API is running")
}
