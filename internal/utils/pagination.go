package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page is a 1-based window over an in-memory result list
type Page struct {
	Number int
	Limit  int
}

// ParsePage reads ?page= and ?limit= from the request. Invalid values fall
// back to the first page and defaultLimit; limit is capped at maxLimit.
func ParsePage(c *gin.Context, defaultLimit, maxLimit int) Page {
	number, err := strconv.Atoi(c.Query("page"))
	if err != nil || number < 1 {
		number = 1
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	switch {
	case err != nil || limit < 1:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}

	return Page{Number: number, Limit: limit}
}

// Bounds returns the slice bounds of the page over total items. Pages past
// the end yield an empty window.
func (p Page) Bounds(total int) (start, end int) {
	start = min((p.Number-1)*p.Limit, total)
	end = min(start+p.Limit, total)
	return start, end
}

// Pages is the number of pages needed for total items, never less than one
func (p Page) Pages(total int) int {
	return max(1, (total+p.Limit-1)/p.Limit)
}

// PageInfo is the pagination block returned next to list data
type PageInfo struct {
	TotalItems   int `json:"totalItems"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Info describes the page for a list of total items
func (p Page) Info(total int) PageInfo {
	return PageInfo{
		TotalItems:   total,
		CurrentPage:  p.Number,
		TotalPages:   p.Pages(total),
		ItemsPerPage: p.Limit,
	}
}

// SendPage writes the page's window of items with its pagination block
func SendPage[T any](c *gin.Context, statusCode int, items []T, p Page) {
	start, end := p.Bounds(len(items))
	c.JSON(statusCode, gin.H{
		"data":       items[start:end],
		"pagination": p.Info(len(items)),
	})
}
