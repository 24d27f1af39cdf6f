package models

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrVendorInUse        = errors.New("case detail associated with vendor exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPageOutOfRange     = errors.New("page out of range")
	ErrDuplicate          = errors.New("duplicate record")
)

// translateWriteError maps unique-constraint violations raised by the
// driver to ErrDuplicate. The pre-insert checks catch the common case; this
// covers concurrent inserts racing past them.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return ErrDuplicate
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrDuplicate
		}
	}
	return err
}
