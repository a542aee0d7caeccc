package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

func getRelease(tx *gorm.DB, releaseID int64) (*model.Release, error) {
	var release model.Release
	if err := tx.First(&release, "release_id = ?", releaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeReleaseNotFound,
				fmt.Sprintf("no release with id=%d exists", releaseID),
			)
		}

		return nil, fmt.Errorf("failed to load release %d: %w", releaseID, err)
	}

	return &release, nil
}

// GetRelease returns a release with its site.
func (s *Store) GetRelease(ctx context.Context, releaseID int64) (*model.Release, error) {
	var release model.Release
	err := s.db.WithContext(ctx).Preload("Site").First(&release, "release_id = ?", releaseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeReleaseNotFound,
				fmt.Sprintf("no release with id=%d exists", releaseID),
			)
		}

		return nil, fmt.Errorf("failed to get release %d: %w", releaseID, err)
	}

	return &release, nil
}

// CreateRelease plans a new release at the configured site. The version must
// be strictly greater than every existing version at the site.
func (s *Store) CreateRelease(ctx context.Context, input store.NewRelease) (*model.Release, error) {
	siteID := input.SiteID
	if siteID == 0 {
		siteID = s.config.SiteID
	}

	release := model.Release{
		Version:     input.Version,
		Label:       input.Label,
		ReleaseType: input.Type,
		SiteID:      siteID,
		Status:      model.ReleaseStatusPlanned,
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var maxVersion float64
		if err := tx.Model(&model.Release{}).
			Where("site_id = ?", siteID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return fmt.Errorf("failed to find latest release version: %w", err)
		}
		if input.Version <= maxVersion {
			return contract.NewError(
				contract.ErrorCodeInvalidParameterValue,
				fmt.Sprintf("release version %.1f must exceed the latest version %.1f at site %d",
					input.Version, maxVersion, siteID),
			)
		}

		if err := tx.Create(&release).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return contract.NewError(
					contract.ErrorCodeResourceAlreadyExists,
					fmt.Sprintf("release %.1f already exists at site %d", input.Version, siteID),
				)
			}

			return fmt.Errorf("failed to create release: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &release, nil
}

// FinalizeRelease turns a planned release into a released one. All steps run
// in a single transaction: either the release goes fully live or nothing
// changes. Pre-release validation is the hard gate; with Force the gate
// becomes a warning list that opts.Confirm must acknowledge. The returned
// list carries the validation problems both on abort and on a confirmed
// forced run.
func (s *Store) FinalizeRelease(
	ctx context.Context,
	releaseID int64,
	opts store.FinalizeOptions,
) (*model.Release, []contract.ValidationError, error) {
	var (
		released *model.Release
		warnings []contract.ValidationError
	)

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		release, err := getRelease(tx, releaseID)
		if err != nil {
			return err
		}
		if release.Status == model.ReleaseStatusReleased && !opts.Force {
			return contract.NewError(
				contract.ErrorCodeAlreadyFinalized,
				fmt.Sprintf("release %.1f is already released", release.Version),
			)
		}
		if release.Status == model.ReleaseStatusArchived {
			return contract.NewError(
				contract.ErrorCodeInvalidTransition,
				fmt.Sprintf("release %.1f is archived", release.Version),
			)
		}

		// Faulty datasets must lose their attachments before anything new is
		// attached to this release.
		if err := s.reconcileFaulty(tx); err != nil {
			return err
		}

		catalog, err := loadKindCatalog(tx)
		if err != nil {
			return err
		}
		run := &finalizeRun{
			store:           s,
			tx:              tx,
			release:         release,
			catalog:         catalog,
			essentialPath:   catalog.essentialPath(s.essentialKinds()),
			exemptKinds:     s.exemptKinds(),
			excludeGenomes:  toSet(opts.ExcludeGenomes),
			excludeDatasets: toSet(opts.ExcludeDatasets),
			graphs:          make(map[int64]*genomeGraph),
		}

		if err := run.attachSideDatasets(); err != nil {
			return err
		}

		stepWarnings, err := run.processTopLevel(opts.Force)
		if err != nil {
			return err
		}
		if len(stepWarnings) > 0 && !opts.Force {
			warnings = stepWarnings

			return contract.NewValidationError("top-level datasets failed processing", stepWarnings)
		}

		if err := run.attachGenomes(); err != nil {
			return err
		}
		if err := run.attachRemainingDatasets(opts.Force); err != nil {
			return err
		}

		violations, err := run.validate()
		if err != nil {
			return err
		}
		violations = append(stepWarnings, violations...)
		if len(violations) > 0 {
			warnings = violations
			if !opts.Force {
				return contract.NewValidationError("pre-release validation failed", violations)
			}
			if opts.Confirm == nil || !opts.Confirm(violations) {
				return contract.NewValidationError("pre-release validation not confirmed", violations)
			}
		}

		if err := run.flip(opts); err != nil {
			return err
		}
		released = release

		return nil
	})
	if err != nil {
		return nil, warnings, err
	}

	return released, warnings, nil
}

type finalizeRun struct {
	store           *Store
	tx              *gorm.DB
	release         *model.Release
	catalog         *kindCatalog
	essentialPath   map[string]struct{}
	exemptKinds     map[string]struct{}
	excludeGenomes  map[string]struct{}
	excludeDatasets map[string]struct{}
	graphs          map[int64]*genomeGraph
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}

	return set
}

func (r *finalizeRun) graph(genomeID int64) (*genomeGraph, error) {
	if graph, ok := r.graphs[genomeID]; ok {
		return graph, nil
	}
	graph, err := loadGenomeGraph(r.tx, r.catalog, genomeID)
	if err != nil {
		return nil, err
	}
	r.graphs[genomeID] = graph

	return graph, nil
}

func (r *finalizeRun) flushGraphs() error {
	for _, graph := range r.graphs {
		if err := graph.flush(r.tx); err != nil {
			return err
		}
	}

	return nil
}

type attachmentRow struct {
	AttachmentID int64
	DatasetID    int64
	GenomeID     int64
	DatasetUUID  string
	GenomeUUID   string
	KindName     string
	Status       model.DatasetStatus
}

func (r *finalizeRun) excluded(row attachmentRow) bool {
	if _, ok := r.excludeDatasets[row.DatasetUUID]; ok {
		return true
	}
	_, ok := r.excludeGenomes[row.GenomeUUID]

	return ok
}

// attachSideDatasets picks up completed datasets of non-essential kinds that
// no release has claimed yet (variation and friends produced between
// releases).
func (r *finalizeRun) attachSideDatasets() error {
	var rows []attachmentRow
	if err := r.tx.Model(&model.GenomeDataset{}).
		Select(`genome_dataset.genome_dataset_id AS attachment_id,
			genome_dataset.dataset_id,
			genome_dataset.genome_id,
			dataset.dataset_uuid,
			genome.genome_uuid,
			dataset_type.name AS kind_name,
			dataset.status`).
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Joins("JOIN dataset_type ON dataset_type.dataset_type_id = dataset.dataset_type_id").
		Joins("JOIN genome ON genome.genome_id = genome_dataset.genome_id").
		Where("genome_dataset.release_id IS NULL AND dataset.status = ?", model.DatasetStatusProcessed).
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to list unattached datasets: %w", err)
	}

	var attach []int64
	for _, row := range rows {
		if _, essential := r.essentialPath[row.KindName]; essential {
			continue
		}
		if r.excluded(row) {
			continue
		}
		attach = append(attach, row.AttachmentID)
	}

	return r.attachByID(attach)
}

func (r *finalizeRun) attachByID(attachmentIDs []int64) error {
	if len(attachmentIDs) == 0 {
		return nil
	}
	if err := r.tx.Model(&model.GenomeDataset{}).
		Where("genome_dataset_id IN ?", attachmentIDs).
		Update("release_id", r.release.ID).Error; err != nil {
		return fmt.Errorf("failed to attach datasets to release %d: %w", r.release.ID, err)
	}

	return nil
}

// processTopLevel pushes the eligible top-level datasets to Processed.
// Non-force considers every top-level dataset not yet Released or Faulty;
// force only touches the ones already linked to this release. Failures come
// back as warnings; the caller decides whether they abort.
func (r *finalizeRun) processTopLevel(force bool) ([]contract.ValidationError, error) {
	query := r.tx.Model(&model.GenomeDataset{}).
		Select(`genome_dataset.genome_dataset_id AS attachment_id,
			genome_dataset.dataset_id,
			genome_dataset.genome_id,
			dataset.dataset_uuid,
			genome.genome_uuid,
			dataset_type.name AS kind_name,
			dataset.status`).
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Joins("JOIN dataset_type ON dataset_type.dataset_type_id = dataset.dataset_type_id").
		Joins("JOIN genome ON genome.genome_id = genome_dataset.genome_id").
		Where("dataset_type.parent_id IS NULL")
	if force {
		query = query.Where("genome_dataset.release_id = ?", r.release.ID)
	} else {
		query = query.Where("dataset.status NOT IN ?",
			[]model.DatasetStatus{model.DatasetStatusReleased, model.DatasetStatusFaulty})
	}

	var rows []attachmentRow
	if err := query.Order("genome_dataset.genome_dataset_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list top-level datasets: %w", err)
	}

	var warnings []contract.ValidationError
	for _, row := range rows {
		if r.excluded(row) {
			continue
		}
		graph, err := r.graph(row.GenomeID)
		if err != nil {
			return nil, err
		}
		dataset, ok := graph.byID[row.DatasetID]
		if !ok || dataset.Status == model.DatasetStatusReleased || dataset.Status == model.DatasetStatusFaulty {
			continue
		}
		if _, err := advanceInGraph(graph, dataset, model.DatasetStatusProcessed, force); err != nil {
			var cErr *contract.Error
			if errors.As(err, &cErr) {
				warnings = append(warnings, contract.ValidationError{
					DatasetUUID: row.DatasetUUID,
					Reason:      cErr.Message,
				})
				warnings = append(warnings, cErr.Details...)

				continue
			}

			return nil, err
		}
	}
	// Successful advances are flushed even when some datasets failed; an
	// abort rolls the whole transaction back anyway.
	if err := r.flushGraphs(); err != nil {
		return nil, err
	}

	return warnings, nil
}

// attachGenomes links every genome whose genebuild dataset finished
// processing to the release, skipping exclusions and genomes already linked.
func (r *finalizeRun) attachGenomes() error {
	var rows []struct {
		GenomeID   int64
		GenomeUUID string
	}
	if err := r.tx.Model(&model.Genome{}).
		Distinct("genome.genome_id, genome.genome_uuid").
		Joins("JOIN genome_dataset ON genome_dataset.genome_id = genome.genome_id").
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Joins("JOIN dataset_type ON dataset_type.dataset_type_id = dataset.dataset_type_id").
		Where("dataset_type.name = ? AND dataset.status IN ?",
			"genebuild",
			[]model.DatasetStatus{model.DatasetStatusProcessed, model.DatasetStatusReleased}).
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to list releasable genomes: %w", err)
	}

	for _, row := range rows {
		if _, ok := r.excludeGenomes[row.GenomeUUID]; ok {
			continue
		}
		var count int64
		if err := r.tx.Model(&model.GenomeRelease{}).
			Where("genome_id = ? AND release_id = ?", row.GenomeID, r.release.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check release link of genome %s: %w", row.GenomeUUID, err)
		}
		if count > 0 {
			continue
		}
		link := model.GenomeRelease{
			GenomeID:  row.GenomeID,
			ReleaseID: r.release.ID,
			IsCurrent: false,
		}
		if err := r.tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to link genome %s to release: %w", row.GenomeUUID, err)
		}
	}

	return nil
}

// attachRemainingDatasets claims the still-unattached datasets of the
// genomes linked to this release. Non-force requires them to have finished
// processing.
func (r *finalizeRun) attachRemainingDatasets(force bool) error {
	var rows []attachmentRow
	if err := r.tx.Model(&model.GenomeDataset{}).
		Select(`genome_dataset.genome_dataset_id AS attachment_id,
			genome_dataset.dataset_id,
			genome_dataset.genome_id,
			dataset.dataset_uuid,
			genome.genome_uuid,
			dataset_type.name AS kind_name,
			dataset.status`).
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Joins("JOIN dataset_type ON dataset_type.dataset_type_id = dataset.dataset_type_id").
		Joins("JOIN genome ON genome.genome_id = genome_dataset.genome_id").
		Where("genome_dataset.release_id IS NULL").
		Where("genome_dataset.genome_id IN (?)",
			r.tx.Session(&gorm.Session{NewDB: true}).
				Model(&model.GenomeRelease{}).
				Select("genome_id").
				Where("release_id = ?", r.release.ID)).
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to list datasets of release genomes: %w", err)
	}

	var attach []int64
	for _, row := range rows {
		if r.excluded(row) {
			continue
		}
		if row.Status == model.DatasetStatusFaulty {
			continue
		}
		if !force && !row.Status.Complete() {
			continue
		}
		attach = append(attach, row.AttachmentID)
	}

	return r.attachByID(attach)
}

// validate is the pre-release gate: every dataset attached to the release
// must have finished processing unless its kind is exempt.
func (r *finalizeRun) validate() ([]contract.ValidationError, error) {
	var rows []attachmentRow
	if err := r.tx.Model(&model.GenomeDataset{}).
		Select(`genome_dataset.genome_dataset_id AS attachment_id,
			genome_dataset.dataset_id,
			genome_dataset.genome_id,
			dataset.dataset_uuid,
			genome.genome_uuid,
			dataset_type.name AS kind_name,
			dataset.status`).
		Joins("JOIN dataset ON dataset.dataset_id = genome_dataset.dataset_id").
		Joins("JOIN dataset_type ON dataset_type.dataset_type_id = dataset.dataset_type_id").
		Joins("JOIN genome ON genome.genome_id = genome_dataset.genome_id").
		Where("genome_dataset.release_id = ?", r.release.ID).
		Order("genome_dataset.genome_dataset_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list release attachments: %w", err)
	}

	var violations []contract.ValidationError
	for _, row := range rows {
		if row.Status.Complete() {
			continue
		}
		if _, exempt := r.exemptKinds[row.KindName]; exempt {
			continue
		}
		violations = append(violations, contract.ValidationError{
			DatasetUUID: row.DatasetUUID,
			Reason:      fmt.Sprintf("%s dataset is %s, expected Processed or Released", row.KindName, row.Status),
		})
	}

	return violations, nil
}

// flip performs the irrevocable part: datasets, attachments and links go
// live, the current-set resolver cleans up, the release itself becomes the
// current one of its type and every sibling release is demoted.
func (r *finalizeRun) flip(opts store.FinalizeOptions) error {
	datasetIDs := r.tx.Session(&gorm.Session{NewDB: true}).
		Model(&model.GenomeDataset{}).
		Select("dataset_id").
		Where("release_id = ?", r.release.ID)
	if err := r.tx.Model(&model.Dataset{}).
		Where("dataset_id IN (?) AND status <> ?", datasetIDs, model.DatasetStatusReleased).
		Update("status", model.DatasetStatusReleased).Error; err != nil {
		return fmt.Errorf("failed to release datasets: %w", err)
	}

	if err := r.tx.Model(&model.GenomeDataset{}).
		Where("release_id = ?", r.release.ID).
		Update("is_current", true).Error; err != nil {
		return fmt.Errorf("failed to mark attachments current: %w", err)
	}
	if err := r.tx.Model(&model.GenomeRelease{}).
		Where("release_id = ?", r.release.ID).
		Update("is_current", true).Error; err != nil {
		return fmt.Errorf("failed to mark release links current: %w", err)
	}

	if err := r.store.resolveCurrentSet(r.tx, r.release, opts.Rank); err != nil {
		return err
	}

	releaseDate := time.Now().UTC().Truncate(24 * time.Hour)
	if opts.ReleaseDate != nil {
		releaseDate = *opts.ReleaseDate
	}
	r.release.Status = model.ReleaseStatusReleased
	r.release.IsCurrent = true
	r.release.ReleaseDate = &releaseDate
	if err := r.tx.Model(&model.Release{}).
		Where("release_id = ?", r.release.ID).
		Updates(map[string]interface{}{
			"status":       model.ReleaseStatusReleased,
			"is_current":   true,
			"release_date": releaseDate,
		}).Error; err != nil {
		return fmt.Errorf("failed to release release %.1f: %w", r.release.Version, err)
	}

	// At most one current release per type per site.
	if err := r.tx.Model(&model.Release{}).
		Where("site_id = ? AND release_type = ? AND release_id <> ?",
			r.release.SiteID, r.release.ReleaseType, r.release.ID).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to demote sibling releases: %w", err)
	}

	return nil
}
