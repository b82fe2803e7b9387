package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// UUIDArray is a uuid[] column. SQLite stores the same array literal as text.
type UUIDArray []uuid.UUID

func (UUIDArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "uuid[]"
	}
	return "text"
}

func (a UUIDArray) Contains(id uuid.UUID) bool {
	return slices.Contains(a, id)
}

func (a *UUIDArray) Scan(src any) error {
	var raw StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("uuid array: %w", err)
	}
	ids := make(UUIDArray, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("uuid array element %d: %w", i, err)
		}
		ids[i] = id
	}
	*a = ids
	return nil
}

func (a UUIDArray) Value() (driver.Value, error) {
	strs := make(pq.StringArray, len(a))
	for i, id := range a {
		strs[i] = id.String()
	}
	return StringArray(strs).Value()
}
