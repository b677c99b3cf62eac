package plans

import (
	"net/http"

	"lipia-service/internal/catalog"
	"lipia-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type PlansHandler struct {
	catalog *catalog.Catalog
}

func NewPlansHandler(cat *catalog.Catalog) *PlansHandler {
	return &PlansHandler{catalog: cat}
}

// ListPlans returns the full plan catalog with both currency projections.
func (h *PlansHandler) ListPlans(c *gin.Context) {
	response.Success(c, http.StatusOK, "plans retrieved", h.catalog.List())
}
