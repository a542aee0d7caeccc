package model

import "fmt"

// DatasetStatus is the processing stage of a dataset. The only ordering the
// engine relies on is that Released is terminal; every other transition is an
// explicit edge checked by the lifecycle engine.
type DatasetStatus string

const (
	DatasetStatusSubmitted  DatasetStatus = "Submitted"
	DatasetStatusProcessing DatasetStatus = "Processing"
	DatasetStatusProcessed  DatasetStatus = "Processed"
	DatasetStatusReleased   DatasetStatus = "Released"
	DatasetStatusFaulty     DatasetStatus = "Faulty"
)

// ParseDatasetStatus rejects anything that is not a known status value.
func ParseDatasetStatus(value string) (DatasetStatus, error) {
	switch DatasetStatus(value) {
	case DatasetStatusSubmitted,
		DatasetStatusProcessing,
		DatasetStatusProcessed,
		DatasetStatusReleased,
		DatasetStatusFaulty:
		return DatasetStatus(value), nil
	default:
		return "", fmt.Errorf("unknown dataset status %q", value)
	}
}

func (s DatasetStatus) String() string {
	return string(s)
}

// Complete reports whether the dataset finished processing.
func (s DatasetStatus) Complete() bool {
	return s == DatasetStatusProcessed || s == DatasetStatusReleased
}

type ReleaseStatus string

const (
	ReleaseStatusPlanned   ReleaseStatus = "Planned"
	ReleaseStatusPreparing ReleaseStatus = "Preparing"
	ReleaseStatusPrepared  ReleaseStatus = "Prepared"
	ReleaseStatusReleased  ReleaseStatus = "Released"
	ReleaseStatusArchived  ReleaseStatus = "Archived"
)

func ParseReleaseStatus(value string) (ReleaseStatus, error) {
	switch ReleaseStatus(value) {
	case ReleaseStatusPlanned,
		ReleaseStatusPreparing,
		ReleaseStatusPrepared,
		ReleaseStatusReleased,
		ReleaseStatusArchived:
		return ReleaseStatus(value), nil
	default:
		return "", fmt.Errorf("unknown release status %q", value)
	}
}

func (s ReleaseStatus) String() string {
	return string(s)
}

// ReleaseType distinguishes incremental releases from comprehensive ones.
type ReleaseType string

const (
	ReleaseTypePartial    ReleaseType = "partial"
	ReleaseTypeIntegrated ReleaseType = "integrated"
)

func ParseReleaseType(value string) (ReleaseType, error) {
	switch ReleaseType(value) {
	case ReleaseTypePartial, ReleaseTypeIntegrated:
		return ReleaseType(value), nil
	default:
		return "", fmt.Errorf("unknown release type %q", value)
	}
}

func (t ReleaseType) String() string {
	return string(t)
}
