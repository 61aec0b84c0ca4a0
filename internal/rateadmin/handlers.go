package rateadmin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// updateRatesRequest is the wire shape for POST /rates: a flat map from tag
// name to non-negative requests-per-second.
type updateRatesRequest map[string]float64

func (s *Server) updateRatesHandler(c *gin.Context) {
	var body updateRatesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rates := make(map[rvadmission.Tag]float64, len(body))
	for tag, rate := range body {
		rates[rvadmission.Tag(tag)] = rate
	}

	if err := s.driver.UpdateRates(c.Request.Context(), rates); err != nil {
		if rvadmission.IsRateMisconfigured(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
