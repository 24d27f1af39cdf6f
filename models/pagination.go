package models

import (
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/config"
)

// Page is one page of an ordered listing. Page numbers start at 1.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int64
}

func (p *Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

func (p *Page[T]) HasPrev() bool { return p.Page > 1 }
func (p *Page[T]) HasNext() bool { return p.Page < p.Pages() }
func (p *Page[T]) PrevNum() int  { return p.Page - 1 }
func (p *Page[T]) NextNum() int  { return p.Page + 1 }

// IterPages lists the page links to render: two pages at each edge, two
// before and four after the current one. A 0 marks a gap.
func (p *Page[T]) IterPages() []int {
	const leftEdge, leftCurrent, rightCurrent, rightEdge = 2, 2, 5, 2
	pages := p.Pages()
	var out []int
	last := 0
	for num := 1; num <= pages; num++ {
		if num <= leftEdge ||
			(num > p.Page-leftCurrent-1 && num < p.Page+rightCurrent) ||
			num > pages-rightEdge {
			if last+1 != num {
				out = append(out, 0)
			}
			out = append(out, num)
			last = num
		}
	}
	return out
}

// Paginate runs q (already filtered, without ORDER BY) for the requested
// page. Pages below 1 are treated as 1; a page past the end, other than an
// empty first page, returns ErrPageOutOfRange.
func Paginate[T any](q *gorm.DB, order string, page int, perPage int) (*Page[T], error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = config.PerPage
	}
	var model T
	var total int64
	if err := q.Session(&gorm.Session{}).Model(&model).Count(&total).Error; err != nil {
		return nil, err
	}
	result := &Page[T]{Page: page, PerPage: perPage, Total: total}
	if page > 1 && page > result.Pages() {
		return nil, ErrPageOutOfRange
	}

	items := []T{}
	find := q.Session(&gorm.Session{}).Model(&model)
	if order != "" {
		find = find.Order(order)
	}
	if err := find.Offset((page - 1) * perPage).Limit(perPage).Find(&items).Error; err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}
