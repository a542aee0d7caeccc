package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// Advance validates and applies one dataset status transition. The returned
// status is the dataset's resulting status, which stays at the current one
// when a precondition fails and force is false. Requesting the status the
// dataset already has is a no-op. Everything runs in one transaction; a
// rejected transition writes nothing.
func (s *Store) Advance(
	ctx context.Context,
	datasetUUID string,
	target model.DatasetStatus,
	force bool,
) (model.DatasetStatus, error) {
	var result model.DatasetStatus

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		catalog, err := loadKindCatalog(tx)
		if err != nil {
			return err
		}

		dataset, genomeID, err := resolveGenome(tx, datasetUUID)
		if err != nil {
			return err
		}

		graph, err := loadGenomeGraph(tx, catalog, genomeID)
		if err != nil {
			return err
		}

		current, ok := graph.byUUID[dataset.UUID]
		if !ok {
			return contract.NewError(
				contract.ErrorCodeHierarchyViolation,
				fmt.Sprintf("dataset %s is not attached to genome %s", dataset.UUID, graph.genome.UUID),
			)
		}

		result, err = advanceInGraph(graph, current, target, force)
		if err != nil {
			return err
		}

		return graph.flush(tx)
	})

	return result, err
}

// advanceInGraph applies the transition to the in-memory graph. Transitions
// are explicit directed edges; the only ordinal comparison is the Released
// terminal check.
func advanceInGraph(
	graph *genomeGraph,
	dataset *model.Dataset,
	target model.DatasetStatus,
	force bool,
) (model.DatasetStatus, error) {
	if dataset.Status == target {
		return target, nil
	}

	switch target {
	case model.DatasetStatusSubmitted:
		// Rollback path: reset this dataset and its whole ancestor chain,
		// children stay untouched.
		graph.setStatus(dataset, model.DatasetStatusSubmitted)
		for _, ancestor := range graph.ancestors(dataset) {
			graph.setStatus(ancestor, model.DatasetStatusSubmitted)
		}

		return model.DatasetStatusSubmitted, nil

	case model.DatasetStatusProcessing:
		if dataset.Status == model.DatasetStatusReleased {
			return dataset.Status, invalidTransition(dataset, target)
		}
		if !force {
			if err := unmetDependencies(graph, dataset); err != nil {
				return dataset.Status, err
			}
		}
		graph.setStatus(dataset, model.DatasetStatusProcessing)
		for _, ancestor := range graph.ancestors(dataset) {
			if ancestor.Status == model.DatasetStatusReleased {
				break
			}
			if !force && unmetDependencies(graph, ancestor) != nil {
				break
			}
			graph.setStatus(ancestor, model.DatasetStatusProcessing)
		}

		return model.DatasetStatusProcessing, nil

	case model.DatasetStatusProcessed:
		if dataset.Status == model.DatasetStatusReleased {
			return dataset.Status, invalidTransition(dataset, target)
		}
		if !force {
			if err := unfinishedChildren(graph, dataset); err != nil {
				return dataset.Status, err
			}
		}
		graph.setStatus(dataset, model.DatasetStatusProcessed)
		for _, ancestor := range graph.ancestors(dataset) {
			if ancestor.Status == model.DatasetStatusReleased {
				break
			}
			if !force && unfinishedChildren(graph, ancestor) != nil {
				break
			}
			graph.setStatus(ancestor, model.DatasetStatusProcessed)
		}

		return model.DatasetStatusProcessed, nil

	case model.DatasetStatusReleased:
		return dataset.Status, contract.NewError(
			contract.ErrorCodeInvalidTransition,
			fmt.Sprintf("dataset %s: Released is reserved for release finalization", dataset.UUID),
		)

	case model.DatasetStatusFaulty:
		return dataset.Status, contract.NewError(
			contract.ErrorCodeInvalidTransition,
			fmt.Sprintf("dataset %s: use MarkFaulty to flag a faulty dataset", dataset.UUID),
		)

	default:
		return dataset.Status, contract.NewError(
			contract.ErrorCodeInvalidParameterValue,
			fmt.Sprintf("unknown dataset status %q", target),
		)
	}
}

func invalidTransition(dataset *model.Dataset, target model.DatasetStatus) *contract.Error {
	return contract.NewError(
		contract.ErrorCodeInvalidTransition,
		fmt.Sprintf("dataset %s: cannot move from %s to %s", dataset.UUID, dataset.Status, target),
	)
}

// unmetDependencies checks the cross-hierarchy prerequisites of a dataset's
// kind: every dependency must be Processed or Released for the same genome.
func unmetDependencies(graph *genomeGraph, dataset *model.Dataset) *contract.Error {
	deps, missing := graph.dependencies(dataset)

	var offenders []contract.ValidationError
	for _, name := range missing {
		offenders = append(offenders, contract.ValidationError{
			DatasetUUID: "",
			Reason:      fmt.Sprintf("no %s dataset exists for genome %s", name, graph.genome.UUID),
		})
	}
	for _, dep := range deps {
		if !dep.Status.Complete() {
			offenders = append(offenders, contract.ValidationError{
				DatasetUUID: dep.UUID,
				Reason:      fmt.Sprintf("dependency %s is %s", graph.kindOf(dep).Name, dep.Status),
			})
		}
	}
	if len(offenders) == 0 {
		return nil
	}

	err := contract.NewError(
		contract.ErrorCodeMissingPrerequisite,
		fmt.Sprintf("dataset %s has unmet dependencies", dataset.UUID),
	)
	err.Details = offenders

	return err
}

// unfinishedChildren rejects Processed while any child dataset is still
// Submitted or Processing. Faulty children do not block; they are handled by
// the faulty sweep.
func unfinishedChildren(graph *genomeGraph, dataset *model.Dataset) *contract.Error {
	var offenders []contract.ValidationError
	for _, child := range graph.childDatasets(dataset) {
		if child.Status == model.DatasetStatusSubmitted || child.Status == model.DatasetStatusProcessing {
			offenders = append(offenders, contract.ValidationError{
				DatasetUUID: child.UUID,
				Reason:      fmt.Sprintf("child %s is %s", graph.kindOf(child).Name, child.Status),
			})
		}
	}
	if len(offenders) == 0 {
		return nil
	}

	err := contract.NewError(
		contract.ErrorCodeMissingPrerequisite,
		fmt.Sprintf("dataset %s has unfinished children", dataset.UUID),
	)
	err.Details = offenders

	return err
}

// MarkFaulty flags the dataset as Faulty. Released datasets cannot become
// faulty. Children are untouched; ReconcileFaulty handles the fallout.
func (s *Store) MarkFaulty(ctx context.Context, datasetUUID string) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		var dataset model.Dataset
		if err := tx.First(&dataset, "dataset_uuid = ?", datasetUUID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return contract.NewError(
					contract.ErrorCodeDatasetNotFound,
					fmt.Sprintf("no dataset with uuid=%s exists", datasetUUID),
				)
			}

			return fmt.Errorf("failed to load dataset %s: %w", datasetUUID, err)
		}

		switch dataset.Status {
		case model.DatasetStatusReleased:
			return invalidTransition(&dataset, model.DatasetStatusFaulty)
		case model.DatasetStatusFaulty:
			return nil
		}

		return tx.Model(&model.Dataset{}).
			Where("dataset_id = ?", dataset.ID).
			Update("status", model.DatasetStatusFaulty).Error
	})
}

// GetDataset returns the dataset with its kind, source and attachments.
func (s *Store) GetDataset(ctx context.Context, datasetUUID string) (*model.Dataset, error) {
	var dataset model.Dataset
	err := s.db.WithContext(ctx).
		Preload("Type").
		Preload("Source").
		Preload("GenomeDatasets").
		First(&dataset, "dataset_uuid = ?", datasetUUID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeDatasetNotFound,
				fmt.Sprintf("no dataset with uuid=%s exists", datasetUUID),
			)
		}

		return nil, fmt.Errorf("failed to get dataset %s: %w", datasetUUID, err)
	}

	return &dataset, nil
}

// GenomesByStatusAndKind lists genomes whose dataset of the given kind is in
// the given status, for pipeline reporting.
func (s *Store) GenomesByStatusAndKind(
	ctx context.Context,
	status model.DatasetStatus,
	kind string,
) ([]store.GenomeDatasetInfo, error) {
	var rows []store.GenomeDatasetInfo
	err := s.db.WithContext(ctx).
		Model(&model.Genome{}).
		Select("genome.genome_uuid, genome.production_name, dataset.dataset_uuid").
		Joins("JOIN genome_dataset ON genome_dataset.genome_id = genome.genome_id").
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Joins("JOIN dataset_type ON dataset_type.dataset_type_id = dataset.dataset_type_id").
		Where("dataset.status = ? AND dataset_type.name = ?", status, kind).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list genomes by status and kind: %w", err)
	}

	return rows, nil
}
