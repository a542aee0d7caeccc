package sql

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// kindCatalog is the dataset kind reference data, loaded once per
// transaction. Kinds form a forest through ParentID.
type kindCatalog struct {
	byID     map[int64]*model.DatasetType
	byName   map[string]*model.DatasetType
	children map[int64][]*model.DatasetType
}

func loadKindCatalog(tx *gorm.DB) (*kindCatalog, error) {
	var kinds []*model.DatasetType
	if err := tx.Find(&kinds).Error; err != nil {
		return nil, fmt.Errorf("failed to load dataset kind catalog: %w", err)
	}

	catalog := &kindCatalog{
		byID:     make(map[int64]*model.DatasetType, len(kinds)),
		byName:   make(map[string]*model.DatasetType, len(kinds)),
		children: make(map[int64][]*model.DatasetType),
	}
	for _, kind := range kinds {
		catalog.byID[kind.ID] = kind
		catalog.byName[kind.Name] = kind
	}
	for _, kind := range kinds {
		if kind.ParentID != nil {
			catalog.children[*kind.ParentID] = append(catalog.children[*kind.ParentID], kind)
		}
	}

	return catalog, nil
}

// parentOf returns the parent kind, or nil for a top-level kind.
func (c *kindCatalog) parentOf(kind *model.DatasetType) *model.DatasetType {
	if kind.ParentID == nil {
		return nil
	}

	return c.byID[*kind.ParentID]
}

// essentialPath returns the names of the essential kinds plus every ancestor
// kind of them. A faulty dataset of one of these kinds takes the genome out
// of any unreleased release.
func (c *kindCatalog) essentialPath(essential map[string]struct{}) map[string]struct{} {
	path := make(map[string]struct{}, len(essential))
	for name := range essential {
		kind := c.byName[name]
		for kind != nil {
			if _, seen := path[kind.Name]; seen {
				break
			}
			path[kind.Name] = struct{}{}
			kind = c.parentOf(kind)
		}
	}

	return path
}

// genomeGraph is the in-memory working set for one genome: every dataset of
// the genome with its attachment, indexed for parent/child and dependency
// walks. Mutations are buffered and written back in one pass by flush, so a
// failed validation leaves the database untouched.
type genomeGraph struct {
	genome  *model.Genome
	catalog *kindCatalog

	byID        map[int64]*model.Dataset
	byUUID      map[string]*model.Dataset
	byKind      map[string][]*model.Dataset
	attachments map[int64]*model.GenomeDataset

	dirtyStatus  map[int64]model.DatasetStatus
	dirtyRelease map[int64]*int64
}

func loadGenomeGraph(tx *gorm.DB, catalog *kindCatalog, genomeID int64) (*genomeGraph, error) {
	var genome model.Genome
	if err := tx.First(&genome, "genome_id = ?", genomeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeGenomeNotFound,
				fmt.Sprintf("no genome with id=%d exists", genomeID),
			)
		}

		return nil, fmt.Errorf("failed to load genome %d: %w", genomeID, err)
	}

	var attachments []*model.GenomeDataset
	if err := tx.Preload("Dataset").Where("genome_id = ?", genomeID).Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("failed to load datasets for genome %d: %w", genomeID, err)
	}

	graph := &genomeGraph{
		genome:       &genome,
		catalog:      catalog,
		byID:         make(map[int64]*model.Dataset, len(attachments)),
		byUUID:       make(map[string]*model.Dataset, len(attachments)),
		byKind:       make(map[string][]*model.Dataset),
		attachments:  make(map[int64]*model.GenomeDataset, len(attachments)),
		dirtyStatus:  make(map[int64]model.DatasetStatus),
		dirtyRelease: make(map[int64]*int64),
	}
	for _, attachment := range attachments {
		dataset := &attachment.Dataset
		graph.byID[dataset.ID] = dataset
		graph.byUUID[dataset.UUID] = dataset
		graph.attachments[dataset.ID] = attachment
		if kind, ok := catalog.byID[dataset.DatasetTypeID]; ok {
			graph.byKind[kind.Name] = append(graph.byKind[kind.Name], dataset)
		}
	}
	// Deterministic walks: newest dataset of a kind first.
	for _, datasets := range graph.byKind {
		sort.Slice(datasets, func(i, j int) bool {
			return datasets[i].Created.After(datasets[j].Created)
		})
	}

	return graph, nil
}

func (g *genomeGraph) kindOf(dataset *model.Dataset) *model.DatasetType {
	return g.catalog.byID[dataset.DatasetTypeID]
}

// datasetOfKind picks the genome's dataset of the given kind. When several
// versions exist the newest non-faulty one wins.
func (g *genomeGraph) datasetOfKind(kindName string) *model.Dataset {
	candidates := g.byKind[kindName]
	for _, candidate := range candidates {
		if candidate.Status != model.DatasetStatusFaulty {
			return candidate
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}

	return nil
}

// parentDataset resolves the dataset one level up the kind hierarchy, or nil
// at the top.
func (g *genomeGraph) parentDataset(dataset *model.Dataset) *model.Dataset {
	kind := g.kindOf(dataset)
	if kind == nil {
		return nil
	}
	parentKind := g.catalog.parentOf(kind)
	if parentKind == nil {
		return nil
	}

	return g.datasetOfKind(parentKind.Name)
}

// ancestors returns the ancestor chain bottom-up, excluding the dataset
// itself. The visited guard keeps a miswired catalog from looping.
func (g *genomeGraph) ancestors(dataset *model.Dataset) []*model.Dataset {
	var chain []*model.Dataset
	visited := map[int64]struct{}{dataset.ID: {}}
	for current := g.parentDataset(dataset); current != nil; current = g.parentDataset(current) {
		if _, seen := visited[current.ID]; seen {
			break
		}
		visited[current.ID] = struct{}{}
		chain = append(chain, current)
	}

	return chain
}

// childDatasets returns the datasets of every direct child kind.
func (g *genomeGraph) childDatasets(dataset *model.Dataset) []*model.Dataset {
	kind := g.kindOf(dataset)
	if kind == nil {
		return nil
	}

	var children []*model.Dataset
	for _, childKind := range g.catalog.children[kind.ID] {
		children = append(children, g.byKind[childKind.Name]...)
	}

	return children
}

// dependencies resolves the cross-hierarchy prerequisite datasets of a
// dataset's kind. Kinds with no dataset for this genome come back in missing.
func (g *genomeGraph) dependencies(dataset *model.Dataset) (deps []*model.Dataset, missing []string) {
	kind := g.kindOf(dataset)
	if kind == nil {
		return nil, nil
	}

	for _, depName := range kind.Dependencies() {
		if dep := g.datasetOfKind(depName); dep != nil {
			deps = append(deps, dep)
		} else {
			missing = append(missing, depName)
		}
	}

	return deps, missing
}

func (g *genomeGraph) setStatus(dataset *model.Dataset, status model.DatasetStatus) {
	if dataset.Status == status {
		return
	}
	dataset.Status = status
	g.dirtyStatus[dataset.ID] = status
}

func (g *genomeGraph) setAttachmentRelease(dataset *model.Dataset, releaseID *int64) {
	attachment, ok := g.attachments[dataset.ID]
	if !ok {
		return
	}
	if equalReleaseRef(attachment.ReleaseID, releaseID) {
		return
	}
	attachment.ReleaseID = releaseID
	g.dirtyRelease[attachment.ID] = releaseID
}

func equalReleaseRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

// flush writes the buffered mutations back inside the caller's transaction.
// Re-running a converged propagation flushes nothing.
func (g *genomeGraph) flush(tx *gorm.DB) error {
	for datasetID, status := range g.dirtyStatus {
		if err := tx.Model(&model.Dataset{}).
			Where("dataset_id = ?", datasetID).
			Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update status of dataset %d: %w", datasetID, err)
		}
	}
	for attachmentID, releaseID := range g.dirtyRelease {
		if err := tx.Model(&model.GenomeDataset{}).
			Where("genome_dataset_id = ?", attachmentID).
			Update("release_id", releaseID).Error; err != nil {
			return fmt.Errorf("failed to update release of attachment %d: %w", attachmentID, err)
		}
	}
	g.dirtyStatus = make(map[int64]model.DatasetStatus)
	g.dirtyRelease = make(map[int64]*int64)

	return nil
}

// resolveGenome finds the dataset by UUID and enforces the single-genome
// attachment assumption.
func resolveGenome(tx *gorm.DB, datasetUUID string) (*model.Dataset, int64, error) {
	var dataset model.Dataset
	if err := tx.First(&dataset, "dataset_uuid = ?", datasetUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, contract.NewError(
				contract.ErrorCodeDatasetNotFound,
				fmt.Sprintf("no dataset with uuid=%s exists", datasetUUID),
			)
		}

		return nil, 0, fmt.Errorf("failed to load dataset %s: %w", datasetUUID, err)
	}

	var genomeIDs []int64
	if err := tx.Model(&model.GenomeDataset{}).
		Distinct("genome_id").
		Where("dataset_id = ?", dataset.ID).
		Pluck("genome_id", &genomeIDs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to resolve genome of dataset %s: %w", datasetUUID, err)
	}

	switch len(genomeIDs) {
	case 1:
		return &dataset, genomeIDs[0], nil
	case 0:
		return nil, 0, contract.NewError(
			contract.ErrorCodeHierarchyViolation,
			fmt.Sprintf("dataset %s is not attached to any genome", datasetUUID),
		)
	default:
		return nil, 0, contract.NewError(
			contract.ErrorCodeHierarchyViolation,
			fmt.Sprintf("dataset %s is attached to %d genomes, exactly one expected", datasetUUID, len(genomeIDs)),
		)
	}
}
