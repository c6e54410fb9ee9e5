package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resale-lister/internal/dtos"
	"github.com/justsurfingit/resale-lister/internal/pricing"
)

// Ladder is the POST /pricing/ladder endpoint. It prices an item from
// reference prices without touching the database.
func Ladder(c *gin.Context) {
	var req dtos.LadderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	cond, err := pricing.ParseCondition(req.Condition)
	if err != nil {
		respondError(c, err, "Invalid condition")
		return
	}
	suggestion, err := pricing.Suggest(pricing.Input{
		Reference: req.Reference,
		Condition: cond,
		Category:  req.Category,
		Facets:    req.Facets,
		Special:   req.Special,
	})
	if err != nil {
		respondError(c, err, "Pricing failed")
		return
	}
	c.JSON(http.StatusOK, suggestion)
}
