package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// fakeStore records the calls the service forwards and returns canned values.
type fakeStore struct {
	store.RegistryStore

	advanceCalls int
	lastTarget   model.DatasetStatus
	lastForce    bool

	finalizeCalls int
}

func (f *fakeStore) Advance(
	_ context.Context,
	_ string,
	target model.DatasetStatus,
	force bool,
) (model.DatasetStatus, error) {
	f.advanceCalls++
	f.lastTarget = target
	f.lastForce = force

	return target, nil
}

func (f *fakeStore) FinalizeRelease(
	_ context.Context,
	_ int64,
	_ store.FinalizeOptions,
) (*model.Release, []contract.ValidationError, error) {
	f.finalizeCalls++

	return &model.Release{Status: model.ReleaseStatusReleased}, nil, nil
}

func (f *fakeStore) GenomesByStatusAndKind(
	_ context.Context,
	_ model.DatasetStatus,
	_ string,
) ([]store.GenomeDatasetInfo, error) {
	return nil, nil
}

func newFakeService(fake *fakeStore) *MetadataService {
	return &MetadataService{
		config:   config.Default(),
		validate: validator.New(),
		Store:    fake,
	}
}

func TestAdvanceParsesStatusStrictly(t *testing.T) {
	fake := &fakeStore{}
	service := newFakeService(fake)
	ctx := context.Background()

	status, err := service.Advance(ctx, "abc", "Processing", true)
	require.Nil(t, err)
	assert.Equal(t, model.DatasetStatusProcessing, status)
	assert.Equal(t, 1, fake.advanceCalls)
	assert.True(t, fake.lastForce)

	// Unknown and misspelled statuses never reach the store.
	for _, target := range []string{"processing", "Done", ""} {
		_, err := service.Advance(ctx, "abc", target, false)
		require.NotNil(t, err)
		assert.Equal(t, contract.ErrorCodeInvalidParameterValue, err.Code)
	}
	assert.Equal(t, 1, fake.advanceCalls)
}

func TestFinalizeReleaseValidatesOptions(t *testing.T) {
	fake := &fakeStore{}
	service := newFakeService(fake)
	ctx := context.Background()

	_, _, err := service.FinalizeRelease(ctx, 1, store.FinalizeOptions{
		ExcludeGenomes: []string{"not-a-uuid"},
	})
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeInvalidParameterValue, err.Code)
	assert.Zero(t, fake.finalizeCalls)

	release, warnings, err := service.FinalizeRelease(ctx, 1, store.FinalizeOptions{
		ExcludeGenomes: []string{"8f5c8620-5b67-4f04-b6a3-51dbd4579a21"},
	})
	require.Nil(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, model.ReleaseStatusReleased, release.Status)
	assert.Equal(t, 1, fake.finalizeCalls)
}

func TestSubmitDatasetValidatesInput(t *testing.T) {
	fake := &fakeStore{}
	service := newFakeService(fake)

	_, err := service.SubmitDataset(context.Background(), store.NewDataset{
		GenomeUUID: "not-a-uuid",
		KindName:   "genebuild",
		SourceName: "core",
		Label:      "x",
	})
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeInvalidParameterValue, err.Code)
}

func TestGenomesByStatusAndKindParsesStatus(t *testing.T) {
	fake := &fakeStore{}
	service := newFakeService(fake)

	_, err := service.GenomesByStatusAndKind(context.Background(), "Stuck", "genebuild")
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeInvalidParameterValue, err.Code)

	rows, err := service.GenomesByStatusAndKind(context.Background(), "Processed", "genebuild")
	require.Nil(t, err)
	assert.Empty(t, rows)
}

func TestCreateReleaseValidatesInput(t *testing.T) {
	fake := &fakeStore{}
	service := newFakeService(fake)

	_, err := service.CreateRelease(context.Background(), store.NewRelease{
		Version: 1.0,
		Type:    "nightly",
	})
	require.NotNil(t, err)
	assert.Equal(t, contract.ErrorCodeInvalidParameterValue, err.Code)
}
