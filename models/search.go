package models

import (
	"strings"

	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/utils"
)

// nameFilter narrows q to rows whose column contains query. Wildcards in
// query match literally.
func nameFilter(q *gorm.DB, column string, query string, caseSensitive bool) *gorm.DB {
	query = strings.TrimSpace(query)
	if query == "" {
		return q
	}
	mysql := q.Dialector.Name() == "mysql"
	if caseSensitive {
		if mysql {
			return q.Where(column+" LIKE BINARY ?", "%"+utils.EscapeLike(query)+"%")
		}
		return q.Where("INSTR("+column+", ?) > 0", query)
	}
	pattern := "%" + strings.ToLower(utils.EscapeLike(query)) + "%"
	if mysql {
		// backslash is already MySQL's LIKE escape character
		return q.Where("LOWER("+column+") LIKE ?", pattern)
	}
	return q.Where("LOWER("+column+") LIKE ? ESCAPE '\\'", pattern)
}
