package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RefsBasic returns the reference lists that populate filter controls.
func (h *Handlers) RefsBasic(c *gin.Context) {
	basic, err := h.refs.Load(c.Request.Context())
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, basic)
}
