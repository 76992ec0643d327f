package domain

import "time"

// ArtifactPhase distinguishes the ephemeral working area from the durable
// output area of a run. tmp/ is deleted after a successful merge; final/
// holds the merged PDF and the DOCX renditions next to it.
type ArtifactPhase string

const (
	PhaseTmp   ArtifactPhase = "tmp"
	PhaseFinal ArtifactPhase = "final"
)

type ArtifactKind string

const (
	ArtifactOriginal      ArtifactKind = "original"
	ArtifactOCRPDF        ArtifactKind = "ocr_pdf"
	ArtifactFormattedDocx ArtifactKind = "formatted_docx"
	ArtifactRawDocx       ArtifactKind = "raw_docx"
)

func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch ArtifactKind(s) {
	case ArtifactOriginal, ArtifactOCRPDF, ArtifactFormattedDocx, ArtifactRawDocx:
		return ArtifactKind(s), nil
	default:
		return "", WrapError(ErrInvalidInput, "parse artifact kind", errInvalidKind(s))
	}
}

type errInvalidKind string

func (e errInvalidKind) Error() string {
	return "unknown artifact kind: " + string(e)
}

// ArtifactLocation identifies where a run's artifacts live. Stages pass this
// value around explicitly; directory paths are derived from it in exactly one
// place and never re-parsed out of path strings.
type ArtifactLocation struct {
	RunID  string
	FileID string
	Option OCROption
	Phase  ArtifactPhase
}

func (l ArtifactLocation) WithPhase(phase ArtifactPhase) ArtifactLocation {
	l.Phase = phase
	return l
}

// RegisteredFile is the file registry's durable record for a derived artifact.
type RegisteredFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// SubmitResult is the synchronous answer to a run submission.
type SubmitResult struct {
	RunID            string    `json:"run_id"`
	Status           RunStatus `json:"status"`
	Message          string    `json:"message,omitempty"`
	AlreadyProcessed bool      `json:"-"`
}

// StatusReport is the full status document for a run, always reporting the
// most specific artifact state available rather than a single pass/fail flag.
type StatusReport struct {
	RunID             string           `json:"run_id"`
	FileID            string           `json:"file_id"`
	Option            OCROption        `json:"ocr_option"`
	Status            RunStatus        `json:"status"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	OriginalFilePath  string           `json:"original_file_path"`
	OCRFilePath       string           `json:"ocr_file_path"`
	FormattedDocxPath string           `json:"formatted_docx_path"`
	RawDocxPath       string           `json:"raw_docx_path"`
	FailedBatches     int              `json:"failed_batches,omitempty"`
	MissingTextPages  string           `json:"missing_text_pages,omitempty"`
	RegisteredOutputs []RegisteredFile `json:"registered_outputs"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
