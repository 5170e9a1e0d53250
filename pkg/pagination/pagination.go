package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination and sort parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
	Sort   string // column name, already checked against an allow-list
	Desc   bool
}

// Parse extracts and validates page/limit from query parameters.
// sort=<column> or sort=-<column> is honoured only for columns in allowedSorts;
// the first allowed column is the default.
func Parse(c *gin.Context, allowedSorts ...string) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	p := Params{Page: page, Limit: limit}
	p.normalize()

	if len(allowedSorts) > 0 {
		p.Sort = allowedSorts[0]
		p.Desc = true
		if raw := strings.TrimSpace(c.Query("sort")); raw != "" {
			desc := strings.HasPrefix(raw, "-")
			col := strings.TrimPrefix(raw, "-")
			for _, allowed := range allowedSorts {
				if col == allowed {
					p.Sort = col
					p.Desc = desc
					break
				}
			}
		}
	}
	return p
}

// New builds Params directly, applying the same bounds as Parse
func New(page, limit int) Params {
	p := Params{Page: page, Limit: limit}
	p.normalize()
	return p
}

// OrderClause renders the sort as an ORDER BY fragment for gorm
func (p Params) OrderClause() string {
	if p.Sort == "" {
		return ""
	}
	if p.Desc {
		return p.Sort + " DESC"
	}
	return p.Sort + " ASC"
}

func (p *Params) normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < MinLimit {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Offset = (p.Page - 1) * p.Limit
}
