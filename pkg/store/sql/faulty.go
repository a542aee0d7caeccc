package sql

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// ReconcileFaulty sweeps every faulty dataset in the registry. For each one
// it clears the release attachment, cascades the faulty state up the ancestor
// chain (a parent with a faulty child is faulty too), and, when the faulty
// dataset sits on the essential path to a genome's public release, drops the
// genome's links to any release that is not yet Released. Sibling subtrees
// keep their attachments. Re-running after convergence changes nothing.
func (s *Store) ReconcileFaulty(ctx context.Context) error {
	return s.transaction(ctx, s.reconcileFaulty)
}

func (s *Store) reconcileFaulty(tx *gorm.DB) error {
	catalog, err := loadKindCatalog(tx)
	if err != nil {
		return err
	}
	essentialPath := catalog.essentialPath(s.essentialKinds())

	var genomeIDs []int64
	if err := tx.Model(&model.GenomeDataset{}).
		Distinct("genome_dataset.genome_id").
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Where("dataset.status = ?", model.DatasetStatusFaulty).
		Order("genome_dataset.genome_id").
		Pluck("genome_dataset.genome_id", &genomeIDs).Error; err != nil {
		return fmt.Errorf("failed to find genomes with faulty datasets: %w", err)
	}

	for _, genomeID := range genomeIDs {
		graph, err := loadGenomeGraph(tx, catalog, genomeID)
		if err != nil {
			return err
		}
		if err := s.reconcileGenome(tx, graph, essentialPath); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) reconcileGenome(tx *gorm.DB, graph *genomeGraph, essentialPath map[string]struct{}) error {
	faulty := make([]*model.Dataset, 0)
	for _, dataset := range graph.byID {
		if dataset.Status == model.DatasetStatusFaulty {
			faulty = append(faulty, dataset)
		}
	}
	sort.Slice(faulty, func(i, j int) bool { return faulty[i].ID < faulty[j].ID })

	essentialHit := false
	for _, dataset := range faulty {
		graph.setAttachmentRelease(dataset, nil)
		if kind := graph.kindOf(dataset); kind != nil {
			if _, ok := essentialPath[kind.Name]; ok {
				essentialHit = true
			}
		}
		// Only the direct ancestor chain is affected; siblings are not.
		for _, ancestor := range graph.ancestors(dataset) {
			if ancestor.Status == model.DatasetStatusReleased {
				break
			}
			graph.setStatus(ancestor, model.DatasetStatusFaulty)
			graph.setAttachmentRelease(ancestor, nil)
			if kind := graph.kindOf(ancestor); kind != nil {
				if _, ok := essentialPath[kind.Name]; ok {
					essentialHit = true
				}
			}
		}
	}

	if err := graph.flush(tx); err != nil {
		return err
	}

	if essentialHit {
		// The genome cannot go out in a pending release anymore. Published
		// releases keep their history.
		if err := tx.Where(
			"genome_id = ? AND release_id IN (?)",
			graph.genome.ID,
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&model.Release{}).
				Select("release_id").
				Where("status <> ?", model.ReleaseStatusReleased),
		).Delete(&model.GenomeRelease{}).Error; err != nil {
			return fmt.Errorf("failed to drop pending release links of genome %s: %w", graph.genome.UUID, err)
		}
	}

	return nil
}
