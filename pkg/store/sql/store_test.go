package sql

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store/sql/model"
	"github.com/genomehub/metareg/pkg/utils"
)

// newTestStore opens a store on a private in-memory database with the full
// schema migrated. Each test gets its own database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Default()
	cfg.StoreURL = fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString())

	store, err := NewSQLStore(logger, cfg)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())

	// Releases reference the configured site.
	site := model.Site{Name: "main", Label: "Main site", URI: "https://genomes.example.org"}
	require.NoError(t, store.db.Create(&site).Error)

	return store
}

// seedKinds installs a small kind forest resembling the production catalog:
//
//	assembly
//	genebuild (depends on assembly)
//	└── xrefs
//	    └── protein_features
//	variation, homologies (depend on genebuild)
//	vep (depends on genebuild and variation)
//	regulatory_features
func seedKinds(t *testing.T, db *gorm.DB) map[string]*model.DatasetType {
	t.Helper()

	assembly := createKind(t, db, "assembly", nil, nil)
	genebuild := createKind(t, db, "genebuild", nil, utils.PtrTo("assembly"))
	xrefs := createKind(t, db, "xrefs", &genebuild.ID, nil)
	proteinFeatures := createKind(t, db, "protein_features", &xrefs.ID, nil)
	variation := createKind(t, db, "variation", nil, utils.PtrTo("genebuild"))
	homologies := createKind(t, db, "homologies", nil, utils.PtrTo("genebuild"))
	vep := createKind(t, db, "vep", nil, utils.PtrTo("genebuild,variation"))
	regulatory := createKind(t, db, "regulatory_features", nil, nil)

	return map[string]*model.DatasetType{
		"assembly":            assembly,
		"genebuild":           genebuild,
		"xrefs":               xrefs,
		"protein_features":    proteinFeatures,
		"variation":           variation,
		"homologies":          homologies,
		"vep":                 vep,
		"regulatory_features": regulatory,
	}
}

func createKind(t *testing.T, db *gorm.DB, name string, parentID *int64, dependsOn *string) *model.DatasetType {
	t.Helper()

	kind := model.DatasetType{
		Name:      name,
		Label:     name,
		Topic:     "production",
		ParentID:  parentID,
		DependsOn: dependsOn,
	}
	require.NoError(t, db.Create(&kind).Error)

	return &kind
}

func seedGenome(t *testing.T, db *gorm.DB, accession string) *model.Genome {
	t.Helper()

	genome := model.Genome{
		UUID:              uuid.NewString(),
		ProductionName:    "homo_sapiens",
		AssemblyAccession: accession,
		GenebuildProvider: "ensembl",
		GenebuildVersion:  "2024-07",
		Created:           time.Now().UTC(),
	}
	require.NoError(t, db.Create(&genome).Error)

	return &genome
}

func seedSource(t *testing.T, db *gorm.DB) *model.DatasetSource {
	t.Helper()

	source := model.DatasetSource{Name: uuid.NewString(), Type: "core"}
	require.NoError(t, db.Create(&source).Error)

	return &source
}

// seedDataset creates a dataset in the given status attached to the genome.
func seedDataset(
	t *testing.T,
	db *gorm.DB,
	genome *model.Genome,
	kind *model.DatasetType,
	status model.DatasetStatus,
) *model.Dataset {
	t.Helper()

	source := seedSource(t, db)
	dataset := model.Dataset{
		UUID:          uuid.NewString(),
		DatasetTypeID: kind.ID,
		Name:          kind.Name,
		Label:         kind.Label,
		SourceID:      source.ID,
		Status:        status,
		Created:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(&dataset).Error)

	attachment := model.GenomeDataset{DatasetID: dataset.ID, GenomeID: genome.ID}
	require.NoError(t, db.Create(&attachment).Error)

	return &dataset
}

func seedRelease(
	t *testing.T,
	db *gorm.DB,
	version float64,
	releaseType model.ReleaseType,
	status model.ReleaseStatus,
) *model.Release {
	t.Helper()

	release := model.Release{
		Version:     version,
		Label:       fmt.Sprintf("release %.1f", version),
		ReleaseType: releaseType,
		SiteID:      1,
		Status:      status,
	}
	if status == model.ReleaseStatusReleased {
		release.ReleaseDate = utils.PtrTo(time.Now().UTC().Truncate(24 * time.Hour))
	}
	require.NoError(t, db.Create(&release).Error)

	return &release
}

func getStatus(t *testing.T, db *gorm.DB, datasetUUID string) model.DatasetStatus {
	t.Helper()

	var dataset model.Dataset
	require.NoError(t, db.First(&dataset, "dataset_uuid = ?", datasetUUID).Error)

	return dataset.Status
}

func getAttachment(t *testing.T, db *gorm.DB, datasetID int64) *model.GenomeDataset {
	t.Helper()

	var attachment model.GenomeDataset
	require.NoError(t, db.First(&attachment, "dataset_id = ?", datasetID).Error)

	return &attachment
}

func setAttachmentRelease(t *testing.T, db *gorm.DB, datasetID, releaseID int64) {
	t.Helper()

	require.NoError(t, db.Model(&model.GenomeDataset{}).
		Where("dataset_id = ?", datasetID).
		Update("release_id", releaseID).Error)
}

func requireCode(t *testing.T, err error, code contract.ErrorCode) *contract.Error {
	t.Helper()

	var cErr *contract.Error
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, code, cErr.Code)

	return cErr
}
