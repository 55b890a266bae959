// Package handlers implements the Console's REST surface: one Gin
// handler struct per resource family, each wrapping the internal/db query
// layer the way the teacher's internal/handlers package wraps
// *db.Database — a constructor plus a RegisterRoutes(group) method,
// registered from cmd/main.go's route table.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/streamspace/fleetconsole/internal/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the wire shape of every list response's "pagination" field.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// pageParams reads page (1-based, default 1) and pageSize (default 20, max
// 100) from the query string.
func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	pageSize = defaultPageSize
	if v, err := strconv.Atoi(c.Query("pageSize")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// paginate slices a fully-materialized slice in place. The query layer in
// this codebase returns whole result sets (no pack repo wires a cursor- or
// offset-based SQL pagination helper for this shape of table), so paging
// is applied in Go after the fetch.
func paginate[T any](items []T, page, pageSize int) ([]T, int) {
	total := len(items)
	start := (page - 1) * pageSize
	if start >= total {
		return []T{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total
}

func paginated(c *gin.Context, items interface{}, page, pageSize, total int) {
	c.JSON(200, gin.H{
		"items": items,
		"pagination": Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

// userID reads the authenticated user id set by middleware.RequireAPIKey.
func userID(c *gin.Context) string {
	v, _ := c.Get("userID")
	id, _ := v.(string)
	return id
}

func respondError(c *gin.Context, appErr *apperrors.AppError) {
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}
