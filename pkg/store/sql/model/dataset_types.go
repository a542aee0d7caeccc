package model

import "strings"

// DatasetType mapped from table <dataset_type>.
//
// Types form a forest via ParentID and carry an independent cross-hierarchy
// prerequisite list in DependsOn (comma separated type names).
type DatasetType struct {
	ID          int64   `db:"dataset_type_id" gorm:"column:dataset_type_id;primaryKey;autoIncrement"`
	Name        string  `db:"name"            gorm:"column:name;not null;uniqueIndex"`
	Label       string  `db:"label"           gorm:"column:label;not null"`
	Topic       string  `db:"topic"           gorm:"column:topic;not null"`
	Description *string `db:"description"     gorm:"column:description"`
	ParentID    *int64  `db:"parent_id"       gorm:"column:parent_id"`
	DependsOn   *string `db:"depends_on"      gorm:"column:depends_on"`

	Datasets []Dataset `gorm:"foreignKey:DatasetTypeID"`
}

func (DatasetType) TableName() string {
	return "dataset_type"
}

// Dependencies returns the names of the types this type depends on.
func (t DatasetType) Dependencies() []string {
	if t.DependsOn == nil || *t.DependsOn == "" {
		return nil
	}

	parts := strings.Split(*t.DependsOn, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}

	return names
}
