package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// PoolIDs is a swap route's pool list. Postgres stores it as bigint[]; other
// dialects store the same array literal as text.
type PoolIDs pq.Int64Array

// GormDataType lets the schema parser accept the slice; the column type
// itself comes from GormDBDataType.
func (PoolIDs) GormDataType() string {
	return "int64_array"
}

func (PoolIDs) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "bigint[]"
	}
	return "text"
}

func (p PoolIDs) Value() (driver.Value, error) {
	return pq.Int64Array(p).Value()
}

func (p *PoolIDs) Scan(src interface{}) error {
	return (*pq.Int64Array)(p).Scan(src)
}
