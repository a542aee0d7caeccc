package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// MetadataService is the in-process API of the registry. It parses loose
// input at the boundary, delegates to the store and translates failures into
// contract errors.
type MetadataService struct {
	config   *config.Config
	validate *validator.Validate
	Store    store.RegistryStore
}

func NewMetadataService(logger *logrus.Logger, cfg *config.Config) (*MetadataService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sqlStore, err := sql.NewSQLStore(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create sql store: %w", err)
	}

	return &MetadataService{
		config:   cfg,
		validate: validator.New(),
		Store:    sqlStore,
	}, nil
}

// asContractError keeps typed errors and wraps everything else as internal.
func asContractError(err error, message string) *contract.Error {
	var cErr *contract.Error
	if errors.As(err, &cErr) {
		return cErr
	}

	return contract.NewErrorWith(contract.ErrorCodeInternalError, message, err)
}

// Advance parses the target status strictly and applies the transition.
func (m *MetadataService) Advance(
	ctx context.Context,
	datasetUUID string,
	target string,
	force bool,
) (model.DatasetStatus, *contract.Error) {
	status, err := model.ParseDatasetStatus(target)
	if err != nil {
		return "", contract.NewError(contract.ErrorCodeInvalidParameterValue, err.Error())
	}

	result, err := m.Store.Advance(ctx, datasetUUID, status, force)
	if err != nil {
		return result, asContractError(err, "failed to advance dataset")
	}

	return result, nil
}

func (m *MetadataService) MarkFaulty(ctx context.Context, datasetUUID string) *contract.Error {
	if err := m.Store.MarkFaulty(ctx, datasetUUID); err != nil {
		return asContractError(err, "failed to mark dataset faulty")
	}

	return nil
}

func (m *MetadataService) ReconcileFaulty(ctx context.Context) *contract.Error {
	if err := m.Store.ReconcileFaulty(ctx); err != nil {
		return asContractError(err, "failed to reconcile faulty datasets")
	}

	return nil
}

func (m *MetadataService) ResolveCurrentSet(ctx context.Context, releaseID int64) *contract.Error {
	if err := m.Store.ResolveCurrentSet(ctx, releaseID, nil); err != nil {
		return asContractError(err, "failed to resolve current set")
	}

	return nil
}

func (m *MetadataService) FinalizeRelease(
	ctx context.Context,
	releaseID int64,
	opts store.FinalizeOptions,
) (*model.Release, []contract.ValidationError, *contract.Error) {
	if err := m.validate.Struct(&opts); err != nil {
		return nil, nil, contract.NewError(contract.ErrorCodeInvalidParameterValue, err.Error())
	}

	release, warnings, err := m.Store.FinalizeRelease(ctx, releaseID, opts)
	if err != nil {
		return nil, warnings, asContractError(err, "failed to finalize release")
	}

	return release, warnings, nil
}

func (m *MetadataService) SubmitDataset(ctx context.Context, input store.NewDataset) (string, *contract.Error) {
	if err := m.validate.Struct(&input); err != nil {
		return "", contract.NewError(contract.ErrorCodeInvalidParameterValue, err.Error())
	}

	datasetUUID, err := m.Store.SubmitDataset(ctx, input)
	if err != nil {
		return "", asContractError(err, "failed to submit dataset")
	}

	return datasetUUID, nil
}

func (m *MetadataService) CreateChildDatasets(ctx context.Context, datasetUUID string) ([]string, *contract.Error) {
	created, err := m.Store.CreateChildDatasets(ctx, datasetUUID)
	if err != nil {
		return nil, asContractError(err, "failed to create child datasets")
	}

	return created, nil
}

func (m *MetadataService) CreateRelease(ctx context.Context, input store.NewRelease) (*model.Release, *contract.Error) {
	if err := m.validate.Struct(&input); err != nil {
		return nil, contract.NewError(contract.ErrorCodeInvalidParameterValue, err.Error())
	}

	release, err := m.Store.CreateRelease(ctx, input)
	if err != nil {
		return nil, asContractError(err, "failed to create release")
	}

	return release, nil
}

func (m *MetadataService) GetDataset(ctx context.Context, datasetUUID string) (*model.Dataset, *contract.Error) {
	dataset, err := m.Store.GetDataset(ctx, datasetUUID)
	if err != nil {
		return nil, asContractError(err, "failed to get dataset")
	}

	return dataset, nil
}

func (m *MetadataService) GetRelease(ctx context.Context, releaseID int64) (*model.Release, *contract.Error) {
	release, err := m.Store.GetRelease(ctx, releaseID)
	if err != nil {
		return nil, asContractError(err, "failed to get release")
	}

	return release, nil
}

func (m *MetadataService) GenomesByStatusAndKind(
	ctx context.Context,
	status string,
	kind string,
) ([]store.GenomeDatasetInfo, *contract.Error) {
	parsed, err := model.ParseDatasetStatus(status)
	if err != nil {
		return nil, contract.NewError(contract.ErrorCodeInvalidParameterValue, err.Error())
	}

	rows, err := m.Store.GenomesByStatusAndKind(ctx, parsed, kind)
	if err != nil {
		return nil, asContractError(err, "failed to list genomes")
	}

	return rows, nil
}
