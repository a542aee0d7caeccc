package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// SubmitDataset creates a dataset in Submitted together with its genome
// attachment. The attachment starts without a release and not current; the
// lifecycle engine owns every later mutation.
func (s *Store) SubmitDataset(ctx context.Context, input store.NewDataset) (string, error) {
	datasetUUID := uuid.NewString()

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var genome model.Genome
		if err := tx.First(&genome, "genome_uuid = ?", input.GenomeUUID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return contract.NewError(
					contract.ErrorCodeGenomeNotFound,
					fmt.Sprintf("no genome with uuid=%s exists", input.GenomeUUID),
				)
			}

			return fmt.Errorf("failed to load genome %s: %w", input.GenomeUUID, err)
		}

		var kind model.DatasetType
		if err := tx.First(&kind, "name = ?", input.KindName).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return contract.NewError(
					contract.ErrorCodeInvalidParameterValue,
					fmt.Sprintf("unknown dataset kind %q", input.KindName),
				)
			}

			return fmt.Errorf("failed to load dataset kind %s: %w", input.KindName, err)
		}

		sourceType := input.SourceType
		if sourceType == "" {
			sourceType = "core"
		}
		source := model.DatasetSource{Name: input.SourceName, Type: sourceType}
		if err := tx.Where("name = ?", input.SourceName).FirstOrCreate(&source).Error; err != nil {
			return fmt.Errorf("failed to resolve dataset source %s: %w", input.SourceName, err)
		}

		name := input.Name
		if name == "" {
			name = kind.Name
		}
		dataset := model.Dataset{
			UUID:          datasetUUID,
			DatasetTypeID: kind.ID,
			Name:          name,
			Label:         input.Label,
			Version:       input.Version,
			SourceID:      source.ID,
			Status:        model.DatasetStatusSubmitted,
			Created:       time.Now().UTC(),
		}
		if err := tx.Create(&dataset).Error; err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}

		attachment := model.GenomeDataset{
			DatasetID: dataset.ID,
			GenomeID:  genome.ID,
			IsCurrent: false,
		}
		if err := tx.Create(&attachment).Error; err != nil {
			return fmt.Errorf("failed to attach dataset to genome %s: %w", genome.UUID, err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return datasetUUID, nil
}

// CreateChildDatasets walks the kind hierarchy below a dataset's kind and
// creates the missing child datasets for the same genome, depth first. Kinds
// that already have a live dataset (Submitted or Processing) are skipped.
// Returns the UUIDs of the created datasets.
func (s *Store) CreateChildDatasets(ctx context.Context, datasetUUID string) ([]string, error) {
	var created []string

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
		parent, ok := graph.byID[dataset.ID]
		if !ok {
			return contract.NewError(
				contract.ErrorCodeHierarchyViolation,
				fmt.Sprintf("dataset %s is not attached to genome %s", dataset.UUID, graph.genome.UUID),
			)
		}

		created, err = createChildrenRecursive(tx, graph, parent)

		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func createChildrenRecursive(tx *gorm.DB, graph *genomeGraph, parent *model.Dataset) ([]string, error) {
	kind := graph.kindOf(parent)
	if kind == nil {
		return nil, nil
	}

	var created []string
	for _, childKind := range graph.catalog.children[kind.ID] {
		if hasLiveDataset(graph, childKind.Name) {
			continue
		}

		child := model.Dataset{
			UUID:          uuid.NewString(),
			DatasetTypeID: childKind.ID,
			Name:          childKind.Name,
			Label:         fmt.Sprintf("Child of %s", parent.Name),
			SourceID:      parent.SourceID,
			Status:        parent.Status,
			ParentID:      &parent.ID,
			Created:       time.Now().UTC(),
		}
		if err := tx.Create(&child).Error; err != nil {
			return nil, fmt.Errorf("failed to create %s dataset: %w", childKind.Name, err)
		}
		attachment := model.GenomeDataset{
			DatasetID: child.ID,
			GenomeID:  graph.genome.ID,
			IsCurrent: false,
		}
		if err := tx.Create(&attachment).Error; err != nil {
			return nil, fmt.Errorf("failed to attach %s dataset: %w", childKind.Name, err)
		}

		// Register in the graph so deeper recursion sees the new dataset.
		graph.byID[child.ID] = &child
		graph.byUUID[child.UUID] = &child
		graph.byKind[childKind.Name] = append([]*model.Dataset{&child}, graph.byKind[childKind.Name]...)
		graph.attachments[child.ID] = &attachment

		created = append(created, child.UUID)
		below, err := createChildrenRecursive(tx, graph, &child)
		if err != nil {
			return nil, err
		}
		created = append(created, below...)
	}

	return created, nil
}

func hasLiveDataset(graph *genomeGraph, kindName string) bool {
	for _, dataset := range graph.byKind[kindName] {
		switch dataset.Status {
		case model.DatasetStatusSubmitted, model.DatasetStatusProcessing:
			return true
		}
	}

	return false
}
