package model

import "time"

// Dataset mapped from table <dataset>.
type Dataset struct {
	ID            int64         `db:"dataset_id"        gorm:"column:dataset_id;primaryKey;autoIncrement"`
	UUID          string        `db:"dataset_uuid"      gorm:"column:dataset_uuid;not null;uniqueIndex"`
	DatasetTypeID int64         `db:"dataset_type_id"   gorm:"column:dataset_type_id;not null;index"`
	Name          string        `db:"name"              gorm:"column:name;not null"`
	Label         string        `db:"label"             gorm:"column:label;not null"`
	Version       *string       `db:"version"           gorm:"column:version"`
	SourceID      int64         `db:"dataset_source_id" gorm:"column:dataset_source_id;not null;index"`
	Status        DatasetStatus `db:"status"            gorm:"column:status;not null;default:Submitted"`
	ParentID      *int64        `db:"parent_id"         gorm:"column:parent_id"`
	Created       time.Time     `db:"created"           gorm:"column:created;not null"`

	Type           DatasetType     `gorm:"foreignKey:DatasetTypeID"`
	Source         DatasetSource   `gorm:"foreignKey:SourceID"`
	GenomeDatasets []GenomeDataset `gorm:"foreignKey:DatasetID"`
}

func (Dataset) TableName() string {
	return "dataset"
}

// DatasetSource mapped from table <dataset_source>, provenance of a dataset.
type DatasetSource struct {
	ID   int64  `db:"dataset_source_id" gorm:"column:dataset_source_id;primaryKey;autoIncrement"`
	Type string `db:"type"              gorm:"column:type;not null"`
	Name string `db:"name"              gorm:"column:name;not null;uniqueIndex"`

	Datasets []Dataset `gorm:"foreignKey:SourceID"`
}

func (DatasetSource) TableName() string {
	return "dataset_source"
}
