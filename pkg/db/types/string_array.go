package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringArray is a text[] column that also round-trips through SQLite.
type StringArray []string

func (StringArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (a *StringArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return err
	}
	if raw == nil {
		raw = pq.StringArray{}
	}
	*a = StringArray(raw)
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}
