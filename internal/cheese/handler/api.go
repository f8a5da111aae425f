package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/everycheese/everycheese/internal/cheese"
	"github.com/everycheese/everycheese/internal/cheese/service"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/gin-gonic/gin"
)

type cheeseResponse struct {
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	Firmness        cheese.Firmness `json:"firmness"`
	FirmnessDisplay string          `json:"firmness_display"`
	Country         *cheese.Country `json:"country_of_origin,omitempty"`
	Creator         string          `json:"creator"`
	URL             string          `json:"url"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toResponse(c *cheese.Cheese) cheeseResponse {
	out := cheeseResponse{
		Name:            c.Name,
		Slug:            c.Slug,
		Description:     c.Description,
		Firmness:        c.Firmness,
		FirmnessDisplay: c.Firmness.Display(),
		Creator:         c.CreatorSub,
		URL:             detailURL(c.Slug),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if country := c.Country(); country.Code != "" {
		out.Country = &country
	}
	return out
}

// RegisterCheeseAPIRoutes mounts the read-only JSON catalog under r.
func RegisterCheeseAPIRoutes(r gin.IRouter, svc service.Service) {
	r.GET("/cheeses", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			logger.Errorf("api list cheeses: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		out := make([]cheeseResponse, 0, len(list))
		for _, ch := range list {
			out = append(out, toResponse(ch))
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/cheeses/:slug", func(c *gin.Context) {
		ch, err := svc.Get(c.Request.Context(), c.Param("slug"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			logger.Errorf("api get cheese: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, toResponse(ch))
	})
}
