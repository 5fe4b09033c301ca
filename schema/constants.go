package schema

// Custom string types for type safety.
type (
	// IntervalKind distinguishes measured intervals from synthesized gap fillers.
	IntervalKind string

	// Resolution represents the granularity used to build intervals.
	Resolution string

	// OutputMode represents the format of the run report.
	OutputMode string

	// OutcomeStatus represents the result of processing one item in a run.
	OutcomeStatus string

	// Stage names the pipeline stage a run belongs to.
	Stage string

	// DatabaseBackend represents the database backend for run tracking.
	DatabaseBackend string
)

// All interval kinds supported.
const (
	MeasurementKind IntervalKind = "MEASUREMENT"
	HoldKind        IntervalKind = "HOLD"
)

// IntervalType returns the lowercase type name written to documents and tables.
func (k IntervalKind) IntervalType() string {
	if k == HoldKind {
		return "hold"
	}
	return "eis"
}

// All resolutions supported. The values double as the split document encoding.
const (
	PerFile        Resolution = "per-file" // default
	PerMeasurement Resolution = "per-frequency"
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All outcome statuses supported.
const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeWarning OutcomeStatus = "warning"
)

// All pipeline stages.
const (
	ExtractStage Stage = "extract"
	ReduceStage  Stage = "reduce"
	PackageStage Stage = "package"
)

// All run tracking backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Defaults shared by the extractor, driver and packager.
const (
	DefaultPattern         = "*C02_?.mpt"
	DefaultExclude         = "fit"
	DefaultPackageFile     = "tnr_data.parquet"
	MetadataSuffix         = "_metadata.parquet"
	ReductionSummarySuffix = "_eis_reduction.json"
	ReductionOptionsFile   = "reduction_options.json"
	PackagerVersion        = "1.0.0"
)

// ValidResolutions lists all valid resolutions.
var ValidResolutions = map[Resolution]struct{}{
	PerFile:        {},
	PerMeasurement: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
