package models

import "gorm.io/gorm"

// ItemType is a row of the static item catalog, imported from the SDE
// invTypes dump. Reports join it for human-readable item names.
type ItemType struct {
	gorm.Model
	TypeID    int32  `gorm:"uniqueIndex;not null" json:"type_id"`
	Name      string `json:"name"`
	Published bool   `gorm:"default:true" json:"published"`
}
