package errors

// Error codes for waykb. Codes are stable identifiers used in logs and
// exit diagnostics; the numeric band encodes the category.
const (
	// 1xx: configuration
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// 2xx: source processing (recoverable per file)
	ErrCodeSourceRead = "ERR_201_SOURCE_READ"

	// 3xx: build (fatal)
	ErrCodeEmptyCorpus      = "ERR_301_EMPTY_CORPUS"
	ErrCodeIndexConsistency = "ERR_302_INDEX_CONSISTENCY"
	ErrCodeBuildLocked      = "ERR_303_BUILD_LOCKED"

	// 4xx: verification
	ErrCodeVerifyMismatch = "ERR_401_VERIFY_MISMATCH"

	// 5xx: storage / embedding collaborators
	ErrCodeStore    = "ERR_501_STORE"
	ErrCodeEmbedder = "ERR_502_EMBEDDER"

	// 9xx: internal
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// Category groups errors by subsystem.
type Category string

const (
	CategoryConfig   Category = "Config"
	CategorySource   Category = "Source"
	CategoryBuild    Category = "Build"
	CategoryVerify   Category = "Verify"
	CategoryStore    Category = "Store"
	CategoryInternal Category = "Internal"
)

// Severity indicates how an error affects the overall operation.
type Severity string

const (
	// SeverityWarning errors are logged and the operation continues.
	SeverityWarning Severity = "warning"
	// SeverityError errors fail the current unit of work.
	SeverityError Severity = "error"
	// SeverityFatal errors abort the whole build.
	SeverityFatal Severity = "fatal"
)

// categoryFromCode derives the category from the code's numeric band.
func categoryFromCode(code string) Category {
	switch {
	case hasBand(code, "1"):
		return CategoryConfig
	case hasBand(code, "2"):
		return CategorySource
	case hasBand(code, "3"):
		return CategoryBuild
	case hasBand(code, "4"):
		return CategoryVerify
	case hasBand(code, "5"):
		return CategoryStore
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
// Source errors are recovered per file; build errors are fatal;
// verification mismatches are reported but do not panic the process.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSourceRead:
		return SeverityWarning
	case ErrCodeEmptyCorpus, ErrCodeIndexConsistency, ErrCodeBuildLocked:
		return SeverityFatal
	case ErrCodeVerifyMismatch:
		return SeverityError
	default:
		return SeverityError
	}
}

// hasBand reports whether the code's first digit matches band.
// Codes look like "ERR_201_SOURCE_READ".
func hasBand(code, band string) bool {
	const prefix = "ERR_"
	if len(code) < len(prefix)+1 {
		return false
	}
	return code[len(prefix):len(prefix)+1] == band
}
