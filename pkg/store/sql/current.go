package sql

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// ResolveCurrentSet restores the current-set invariants around a release:
// at most one current attachment per (genome, kind), and at most one current
// genome release link per (assembly accession, genebuild provider) group
// across partial releases. Integrated releases are always considered current
// and never demote one another. The resolver only flips is_current flags and
// is safe to re-run.
func (s *Store) ResolveCurrentSet(ctx context.Context, releaseID int64, rank store.GenomeRank) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		release, err := getRelease(tx, releaseID)
		if err != nil {
			return err
		}

		return s.resolveCurrentSet(tx, release, rank)
	})
}

// defaultRank prefers the later release version, then the newer genome.
func defaultRank(a, b store.RankedLink) bool {
	if a.Release.Version != b.Release.Version {
		return a.Release.Version > b.Release.Version
	}

	return a.Genome.Created.After(b.Genome.Created)
}

func (s *Store) resolveCurrentSet(tx *gorm.DB, release *model.Release, rank store.GenomeRank) error {
	if rank == nil {
		rank = defaultRank
	}

	genomeIDs, err := releaseGenomeIDs(tx, release.ID)
	if err != nil {
		return err
	}
	if len(genomeIDs) == 0 {
		return nil
	}

	if err := s.resolveAttachments(tx, genomeIDs); err != nil {
		return err
	}

	return s.resolvePartialLinks(tx, genomeIDs, rank)
}

// releaseGenomeIDs collects every genome touched by the release, through
// either its links or its attachments.
func releaseGenomeIDs(tx *gorm.DB, releaseID int64) ([]int64, error) {
	seen := make(map[int64]struct{})

	var fromLinks []int64
	if err := tx.Model(&model.GenomeRelease{}).
		Distinct("genome_id").
		Where("release_id = ?", releaseID).
		Pluck("genome_id", &fromLinks).Error; err != nil {
		return nil, fmt.Errorf("failed to list genomes of release %d: %w", releaseID, err)
	}

	var fromAttachments []int64
	if err := tx.Model(&model.GenomeDataset{}).
		Distinct("genome_id").
		Where("release_id = ?", releaseID).
		Pluck("genome_id", &fromAttachments).Error; err != nil {
		return nil, fmt.Errorf("failed to list attached genomes of release %d: %w", releaseID, err)
	}

	ids := make([]int64, 0, len(fromLinks)+len(fromAttachments))
	for _, id := range append(fromLinks, fromAttachments...) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// resolveAttachments enforces "at most one current attachment per
// (genome, kind)": the attachment whose release has the later date wins, an
// integrated release wins an exact date tie, everything else is demoted.
func (s *Store) resolveAttachments(tx *gorm.DB, genomeIDs []int64) error {
	var attachments []model.GenomeDataset
	if err := tx.
		Preload("Dataset.Type").
		Preload("Release").
		Where("genome_id IN ? AND is_current = ?", genomeIDs, true).
		Find(&attachments).Error; err != nil {
		return fmt.Errorf("failed to load current attachments: %w", err)
	}

	type groupKey struct {
		genomeID int64
		kind     string
	}
	groups := make(map[groupKey][]model.GenomeDataset)
	for _, attachment := range attachments {
		key := groupKey{genomeID: attachment.GenomeID, kind: attachment.Dataset.Type.Name}
		groups[key] = append(groups[key], attachment)
	}

	var demote []int64
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		winner := 0
		for i := 1; i < len(group); i++ {
			if attachmentOutranks(group[i], group[winner]) {
				winner = i
			}
		}
		for i, attachment := range group {
			if i != winner {
				demote = append(demote, attachment.ID)
			}
		}
	}

	return demoteAttachments(tx, demote)
}

func attachmentOutranks(a, b model.GenomeDataset) bool {
	aDate, bDate := releaseDate(a.Release), releaseDate(b.Release)
	if !aDate.Equal(bDate) {
		return aDate.After(bDate)
	}
	// Exact date tie: the integrated release stays current.
	aIntegrated := a.Release != nil && a.Release.ReleaseType == model.ReleaseTypeIntegrated
	bIntegrated := b.Release != nil && b.Release.ReleaseType == model.ReleaseTypeIntegrated

	return aIntegrated && !bIntegrated
}

func releaseDate(release *model.Release) time.Time {
	if release == nil || release.ReleaseDate == nil {
		return time.Time{}
	}

	return *release.ReleaseDate
}

func demoteAttachments(tx *gorm.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&model.GenomeDataset{}).
		Where("genome_dataset_id IN ?", ids).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to demote attachments: %w", err)
	}

	return nil
}

// resolvePartialLinks enforces "at most one current genome release link per
// (assembly accession, genebuild provider) group" across partial releases at
// this site. Groups are seeded from the given genomes but pull in every
// current partial link sharing the group key, so superseded partial releases
// are demoted too.
func (s *Store) resolvePartialLinks(tx *gorm.DB, genomeIDs []int64, rank store.GenomeRank) error {
	var genomes []model.Genome
	if err := tx.Where("genome_id IN ?", genomeIDs).Find(&genomes).Error; err != nil {
		return fmt.Errorf("failed to load genomes: %w", err)
	}

	type groupKey struct {
		assembly string
		provider string
	}
	wanted := make(map[groupKey]struct{}, len(genomes))
	for _, genome := range genomes {
		wanted[groupKey{assembly: genome.AssemblyAccession, provider: genome.GenebuildProvider}] = struct{}{}
	}

	var links []model.GenomeRelease
	if err := tx.
		Preload("Genome").
		Preload("Release").
		Joins("JOIN release ON release.release_id = genome_release.release_id").
		Where("genome_release.is_current = ? AND release.release_type = ? AND release.site_id = ?",
			true, model.ReleaseTypePartial, s.config.SiteID).
		Find(&links).Error; err != nil {
		return fmt.Errorf("failed to load current partial release links: %w", err)
	}

	groups := make(map[groupKey][]store.RankedLink)
	for _, link := range links {
		key := groupKey{assembly: link.Genome.AssemblyAccession, provider: link.Genome.GenebuildProvider}
		if _, ok := wanted[key]; !ok {
			continue
		}
		groups[key] = append(groups[key], store.RankedLink{
			Link:    link,
			Genome:  link.Genome,
			Release: link.Release,
		})
	}

	var demote []int64
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return rank(group[i], group[j]) })
		for _, candidate := range group[1:] {
			demote = append(demote, candidate.Link.ID)
		}
	}
	if len(demote) == 0 {
		return nil
	}
	if err := tx.Model(&model.GenomeRelease{}).
		Where("genome_release_id IN ?", demote).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to demote release links: %w", err)
	}

	return nil
}
