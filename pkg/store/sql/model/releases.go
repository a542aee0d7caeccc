package model

import "time"

// Release mapped from table <release>. Version carries one decimal place and
// is unique per site.
type Release struct {
	ID          int64         `db:"release_id"   gorm:"column:release_id;primaryKey;autoIncrement"`
	Version     float64       `db:"version"      gorm:"column:version;not null;index:release_version_site_uniq,unique"`
	Label       string        `db:"label"        gorm:"column:label"`
	ReleaseDate *time.Time    `db:"release_date" gorm:"column:release_date"`
	IsCurrent   bool          `db:"is_current"   gorm:"column:is_current;not null;default:false"`
	SiteID      int64         `db:"site_id"      gorm:"column:site_id;not null;index:release_version_site_uniq,unique"`
	ReleaseType ReleaseType   `db:"release_type" gorm:"column:release_type;not null"`
	Status      ReleaseStatus `db:"status"       gorm:"column:status;not null;default:Planned"`

	Site           Site            `gorm:"foreignKey:SiteID"`
	GenomeDatasets []GenomeDataset `gorm:"foreignKey:ReleaseID"`
	GenomeReleases []GenomeRelease `gorm:"foreignKey:ReleaseID"`
}

func (Release) TableName() string {
	return "release"
}

// Site mapped from table <site>. Releases are scoped per site; the "at most
// one current release per release type" invariant holds within a site.
type Site struct {
	ID    int64  `db:"site_id" gorm:"column:site_id;primaryKey;autoIncrement"`
	Name  string `db:"name"    gorm:"column:name;not null"`
	Label string `db:"label"   gorm:"column:label;not null"`
	URI   string `db:"uri"     gorm:"column:uri;not null"`

	Releases []Release `gorm:"foreignKey:SiteID"`
}

func (Site) TableName() string {
	return "site"
}
