package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/niranji/storefront-api/internal/domain/product"
)

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := h.products.List(ctx)
	if err != nil {
		zctx.From(ctx).Error("Product listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch products."})
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetProduct returns a single catalog entry.
func (h *Handler) GetProduct(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	p, err := h.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		zctx.From(ctx).Error("Product lookup failed", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch product."})
		return
	}

	c.JSON(http.StatusOK, toProductResponse(p))
}
