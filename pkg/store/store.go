package store

import (
	"context"
	"time"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

// RegistryStore is the transactional boundary of the registry. Every method
// runs as a single atomic unit against the backing database: it either
// commits as a whole or leaves no observable partial state. Concurrent
// finalizations of releases sharing a genome or assembly are unsupported and
// must be serialized by the caller.
type RegistryStore interface {
	// Advance validates and applies one dataset status transition, returning
	// the dataset's resulting status. The result can differ from target when
	// a precondition fails and force is false.
	Advance(ctx context.Context, datasetUUID string, target model.DatasetStatus, force bool) (model.DatasetStatus, error)

	// MarkFaulty flags a dataset as faulty without touching its children.
	// ReconcileFaulty must run afterwards to clear stale release attachments.
	MarkFaulty(ctx context.Context, datasetUUID string) error

	// ReconcileFaulty sweeps every faulty dataset: clears its release
	// attachment, cascades the faulty state up the ancestor chain, and drops
	// genome release links that depended on an essential-path dataset.
	// Safe to re-run; it converges.
	ReconcileFaulty(ctx context.Context) error

	// ResolveCurrentSet restores the "at most one current attachment per
	// (genome, kind)" and "at most one current partial link per (assembly,
	// provider)" invariants around the given release. It only flips
	// is_current flags, never creates records. A nil rank uses the default
	// ordering (later release version wins).
	ResolveCurrentSet(ctx context.Context, releaseID int64, rank GenomeRank) error

	// FinalizeRelease runs the full finalization workflow and, on success,
	// returns the released release. Validation failures are aggregated; the
	// returned list is populated both on abort and on a confirmed forced run.
	FinalizeRelease(ctx context.Context, releaseID int64, opts FinalizeOptions) (*model.Release, []contract.ValidationError, error)

	SubmitDataset(ctx context.Context, input NewDataset) (string, error)
	CreateChildDatasets(ctx context.Context, datasetUUID string) ([]string, error)
	CreateRelease(ctx context.Context, input NewRelease) (*model.Release, error)

	GetDataset(ctx context.Context, datasetUUID string) (*model.Dataset, error)
	GetRelease(ctx context.Context, releaseID int64) (*model.Release, error)
	GenomesByStatusAndKind(ctx context.Context, status model.DatasetStatus, kind string) ([]GenomeDatasetInfo, error)
}

// RankedLink is one candidate for the "current" genome release link within a
// (assembly accession, genebuild provider) group.
type RankedLink struct {
	Link    model.GenomeRelease
	Genome  model.Genome
	Release model.Release
}

// GenomeRank reports whether a should outrank b when picking the single
// current link of a group.
type GenomeRank func(a, b RankedLink) bool

// FinalizeOptions tunes the release finalization workflow.
type FinalizeOptions struct {
	// Force downgrades the processing and pre-release validation aborts to
	// warnings which Confirm must acknowledge.
	Force           bool
	ExcludeGenomes  []string `validate:"dive,uuid"`
	ExcludeDatasets []string `validate:"dive,uuid"`
	// ReleaseDate overrides the stamped date; defaults to today.
	ReleaseDate *time.Time
	// Confirm is consulted in force mode before continuing past validation
	// warnings. A nil Confirm aborts, same as answering no. Interactive
	// prompting belongs to the caller, not the engine.
	Confirm func(warnings []contract.ValidationError) bool
	// Rank overrides the genome ordering used by the current-set resolver.
	Rank GenomeRank
}

// NewDataset describes a dataset submission.
type NewDataset struct {
	GenomeUUID string  `json:"genome_uuid" validate:"required,uuid4"`
	KindName   string  `json:"kind"        validate:"required"`
	SourceName string  `json:"source_name" validate:"required"`
	SourceType string  `json:"source_type"`
	Name       string  `json:"name"`
	Label      string  `json:"label"       validate:"required"`
	Version    *string `json:"version"`
}

// NewRelease describes a planned release. Version must exceed every existing
// version at the site.
type NewRelease struct {
	Version float64           `json:"version" validate:"required,gt=0"`
	Label   string            `json:"label"`
	Type    model.ReleaseType `json:"release_type" validate:"required,oneof=partial integrated"`
	SiteID  int64             `json:"site_id"`
}

// GenomeDatasetInfo is a reporting row for pipeline queries.
type GenomeDatasetInfo struct {
	GenomeUUID     string `json:"genome_uuid"`
	ProductionName string `json:"production_name"`
	DatasetUUID    string `json:"dataset_uuid"`
}
