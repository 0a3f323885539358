package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"watchtower/internal/engine/check"
	"watchtower/internal/engine/state"
)

type checkStatusResponse struct {
	Key                 string     `json:"key"`
	Kind                string     `json:"kind"`
	Target              string     `json:"target"`
	Interval            string     `json:"interval"`
	LastOK              bool       `json:"last_ok"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastAlertAt         *time.Time `json:"last_alert_at"`
}

type Handler struct {
	specs []check.Spec
	store state.Store
}

func NewHandler(specs []check.Spec, store state.Store) *Handler {
	return &Handler{
		specs: specs,
		store: store,
	}
}

func (h *Handler) Healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// GetChecks reports the configured checks with their last known state.
func (h *Handler) GetChecks() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := make([]checkStatusResponse, 0, len(h.specs))
		for _, spec := range h.specs {
			st := h.store.Get(c.Request.Context(), spec.Key)
			resp = append(resp, checkStatusResponse{
				Key:                 spec.Key,
				Kind:                spec.Kind,
				Target:              spec.Target,
				Interval:            spec.Interval.String(),
				LastOK:              st.LastOK,
				ConsecutiveFailures: st.ConsecutiveFailures,
				LastAlertAt:         st.LastAlertAt,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}
