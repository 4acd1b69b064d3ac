package entities

import (
	"database/sql/driver"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONText is a JSON column stored as TEXT on SQLite. A column declared JSON
// there gets NUMERIC affinity, so a scalar like `3` comes back as an integer.
// Scan accepts those numeric values as well, for databases created before the
// column type changed.
type JSONText datatypes.JSON

func (j JSONText) Value() (driver.Value, error) {
	return datatypes.JSON(j).Value()
}

func (j *JSONText) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		src = strconv.FormatInt(v, 10)
	case float64:
		src = strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		src = strconv.FormatBool(v)
	}
	return (*datatypes.JSON)(j).Scan(src)
}

func (j JSONText) MarshalJSON() ([]byte, error) {
	return datatypes.JSON(j).MarshalJSON()
}

func (j *JSONText) UnmarshalJSON(b []byte) error {
	return (*datatypes.JSON)(j).UnmarshalJSON(b)
}

func (j JSONText) String() string { return string(j) }

// GormDataType implements schema.GormDataTypeInterface.
func (JSONText) GormDataType() string { return "json" }

// GormDBDataType picks TEXT on SQLite and the native JSON type elsewhere.
func (j JSONText) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "TEXT"
	}
	return datatypes.JSON(j).GormDBDataType(db, field)
}
