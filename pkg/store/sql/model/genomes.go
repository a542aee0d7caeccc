package model

import "time"

// Genome mapped from table <genome>. Assembly and provider fields are
// read-only context for the engine; they scope the current-set resolution of
// genome release links.
type Genome struct {
	ID                int64     `db:"genome_id"          gorm:"column:genome_id;primaryKey;autoIncrement"`
	UUID              string    `db:"genome_uuid"        gorm:"column:genome_uuid;not null;uniqueIndex"`
	ProductionName    string    `db:"production_name"    gorm:"column:production_name;not null"`
	AssemblyAccession string    `db:"assembly_accession" gorm:"column:assembly_accession;not null"`
	GenebuildProvider string    `db:"genebuild_provider" gorm:"column:genebuild_provider;not null"`
	GenebuildVersion  string    `db:"genebuild_version"  gorm:"column:genebuild_version;not null"`
	Created           time.Time `db:"created"            gorm:"column:created;not null"`

	GenomeDatasets []GenomeDataset `gorm:"foreignKey:GenomeID"`
	GenomeReleases []GenomeRelease `gorm:"foreignKey:GenomeID"`
}

func (Genome) TableName() string {
	return "genome"
}

// GenomeDataset mapped from table <genome_dataset>. The attachment between a
// dataset, its genome and (once attached) a release. ReleaseID is null until
// the dataset is picked up by a release.
type GenomeDataset struct {
	ID        int64  `db:"genome_dataset_id" gorm:"column:genome_dataset_id;primaryKey;autoIncrement"`
	DatasetID int64  `db:"dataset_id"        gorm:"column:dataset_id;not null;index"`
	GenomeID  int64  `db:"genome_id"         gorm:"column:genome_id;not null;index"`
	ReleaseID *int64 `db:"release_id"        gorm:"column:release_id;index"`
	IsCurrent bool   `db:"is_current"        gorm:"column:is_current;not null;default:false"`

	Dataset Dataset  `gorm:"foreignKey:DatasetID"`
	Genome  Genome   `gorm:"foreignKey:GenomeID"`
	Release *Release `gorm:"foreignKey:ReleaseID"`
}

func (GenomeDataset) TableName() string {
	return "genome_dataset"
}

// GenomeRelease mapped from table <genome_release>. Links a genome to a
// release independent of dataset-level detail.
type GenomeRelease struct {
	ID        int64 `db:"genome_release_id" gorm:"column:genome_release_id;primaryKey;autoIncrement"`
	GenomeID  int64 `db:"genome_id"         gorm:"column:genome_id;not null;index"`
	ReleaseID int64 `db:"release_id"        gorm:"column:release_id;not null;index"`
	IsCurrent bool  `db:"is_current"        gorm:"column:is_current;not null;default:false"`

	Genome  Genome  `gorm:"foreignKey:GenomeID"`
	Release Release `gorm:"foreignKey:ReleaseID"`
}

func (GenomeRelease) TableName() string {
	return "genome_release"
}
