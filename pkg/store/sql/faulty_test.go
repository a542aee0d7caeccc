package sql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomehub/metareg/pkg/store/sql/model"
)

func TestReconcileFaultyCascadesUpTheChain(t *testing.T) {
	store := newTestStore(t)
	kinds := seedKinds(t, store.db)
	genome := seedGenome(t, store.db, "GCA_000001405.29")
	ctx := context.Background()

	pending := seedRelease(t, store.db, 1.0, model.ReleaseTypePartial, model.ReleaseStatusPlanned)

	genebuild := seedDataset(t, store.db, genome, kinds["genebuild"], model.DatasetStatusProcessed)
	xrefs := seedDataset(t, store.db, genome, kinds["xrefs"], model.DatasetStatusProcessed)
	proteinFeatures := seedDataset(t, store.db, genome, kinds["protein_features"], model.DatasetStatusFaulty)
	variation := seedDataset(t, store.db, genome, kinds["variation"], model.DatasetStatusProcessed)

	for _, dataset := range []*model.Dataset{genebuild, xrefs, proteinFeatures, variation} {
		setAttachmentRelease(t, store.db, dataset.ID, pending.ID)
	}

	require.NoError(t, store.ReconcileFaulty(ctx))

	assert.Equal(t, model.DatasetStatusFaulty, getStatus(t, store.db, xrefs.UUID))
	assert.Equal(t, model.DatasetStatusFaulty, getStatus(t, store.db, genebuild.UUID))
	// The sibling hierarchy keeps its status and attachment.
	assert.Equal(t, model.DatasetStatusProcessed, getStatus(t, store.db, variation.UUID))
	assert.NotNil(t, getAttachment(t, store.db, variation.ID).ReleaseID)

	for _, dataset := range []*model.Dataset{genebuild, xrefs, proteinFeatures} {
		assert.Nil(t, getAttachment(t, store.db, dataset.ID).ReleaseID)
	}
}

func TestReconcileFaultyStopsAtReleasedAncestor(t *testing.T) {
	store := newTestStore(t)
	kinds := seedKinds(t, store.db)
	genome := seedGenome(t, store.db, "GCA_000001405.29")

	genebuild := seedDataset(t, store.db, genome, kinds["genebuild"], model.DatasetStatusReleased)
	xrefs := seedDataset(t, store.db, genome, kinds["xrefs"], model.DatasetStatusFaulty)

	require.NoError(t, store.ReconcileFaulty(context.Background()))

	// Published history is never rewritten by the sweep.
	assert.Equal(t, model.DatasetStatusReleased, getStatus(t, store.db, genebuild.UUID))
	assert.Equal(t, model.DatasetStatusFaulty, getStatus(t, store.db, xrefs.UUID))
}

func TestReconcileFaultyDropsPendingReleaseLinks(t *testing.T) {
	store := newTestStore(t)
	kinds := seedKinds(t, store.db)
	genome := seedGenome(t, store.db, "GCA_000001405.29")
	ctx := context.Background()

	published := seedRelease(t, store.db, 1.0, model.ReleaseTypePartial, model.ReleaseStatusReleased)
	pending := seedRelease(t, store.db, 2.0, model.ReleaseTypePartial, model.ReleaseStatusPlanned)
	for _, release := range []*model.Release{published, pending} {
		link := model.GenomeRelease{GenomeID: genome.ID, ReleaseID: release.ID}
		require.NoError(t, store.db.Create(&link).Error)
	}

	// genebuild sits on the essential path.
	seedDataset(t, store.db, genome, kinds["genebuild"], model.DatasetStatusFaulty)

	require.NoError(t, store.ReconcileFaulty(ctx))

	var links []model.GenomeRelease
	require.NoError(t, store.db.Where("genome_id = ?", genome.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, published.ID, links[0].ReleaseID)
}

func TestReconcileFaultyNonEssentialKeepsReleaseLinks(t *testing.T) {
	store := newTestStore(t)
	kinds := seedKinds(t, store.db)
	genome := seedGenome(t, store.db, "GCA_000001405.29")

	pending := seedRelease(t, store.db, 1.0, model.ReleaseTypePartial, model.ReleaseStatusPlanned)
	link := model.GenomeRelease{GenomeID: genome.ID, ReleaseID: pending.ID}
	require.NoError(t, store.db.Create(&link).Error)

	// variation is not on the essential path, the genome stays in the release.
	seedDataset(t, store.db, genome, kinds["variation"], model.DatasetStatusFaulty)

	require.NoError(t, store.ReconcileFaulty(context.Background()))

	var count int64
	require.NoError(t, store.db.Model(&model.GenomeRelease{}).
		Where("genome_id = ?", genome.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReconcileFaultyConverges(t *testing.T) {
	store := newTestStore(t)
	kinds := seedKinds(t, store.db)
	genome := seedGenome(t, store.db, "GCA_000001405.29")
	ctx := context.Background()

	genebuild := seedDataset(t, store.db, genome, kinds["genebuild"], model.DatasetStatusProcessed)
	seedDataset(t, store.db, genome, kinds["xrefs"], model.DatasetStatusFaulty)

	require.NoError(t, store.ReconcileFaulty(ctx))
	require.NoError(t, store.ReconcileFaulty(ctx))

	assert.Equal(t, model.DatasetStatusFaulty, getStatus(t, store.db, genebuild.UUID))
}
