package domain

import "time"

type OCROption string

const (
	OptionBasic    OCROption = "basic"
	OptionAdvanced OCROption = "advanced"
)

func ParseOCROption(s string) (OCROption, error) {
	switch OCROption(s) {
	case OptionBasic, OptionAdvanced:
		return OCROption(s), nil
	default:
		return "", WrapError(ErrInvalidInput, "parse ocr option", errInvalidOption(s))
	}
}

type errInvalidOption string

func (e errInvalidOption) Error() string {
	return "unknown ocr option: " + string(e)
}

type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// CanTransition encodes the forward-only run state machine. Terminal states
// never transition; a failed run must be resubmitted as a new attempt.
func (s RunStatus) CanTransition(to RunStatus) bool {
	switch s {
	case RunPending:
		return to == RunProcessing || to == RunFailed
	case RunProcessing:
		return to == RunCompleted || to == RunFailed
	default:
		return false
	}
}

func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

type Run struct {
	ID           string    `json:"id"`
	FileID       string    `json:"file_id"`
	Option       OCROption `json:"ocr_option"`
	Status       RunStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type FileStatus string

const (
	FileProcessing FileStatus = "processing"
	FileProcessed  FileStatus = "processed"
	FileCompleted  FileStatus = "completed"
	FileFailed     FileStatus = "failed"
)

// CanTransition mirrors the run machine at file granularity.
// Processed marks the merged OCR PDF as durable; DOCX rendering happens
// between Processed and Completed and must never regress the record.
func (s FileStatus) CanTransition(to FileStatus) bool {
	switch s {
	case FileProcessing:
		return to == FileProcessed || to == FileCompleted || to == FileFailed
	case FileProcessed:
		return to == FileCompleted
	default:
		return false
	}
}

// OCRFile is the per-(source file, OCR option) processing record.
// At most one row exists per pair; stages only move it forward.
type OCRFile struct {
	ID                string     `json:"id"`
	RunID             string     `json:"run_id"`
	FileID            string     `json:"file_id"`
	Option            OCROption  `json:"ocr_option"`
	Status            FileStatus `json:"status"`
	OCRPath           string     `json:"ocr_path,omitempty"`
	FormattedDocxPath string     `json:"formatted_docx_path,omitempty"`
	RawDocxPath       string     `json:"raw_docx_path,omitempty"`
	FailedBatches     int        `json:"failed_batches,omitempty"`
	MissingTextPages  string     `json:"missing_text_pages,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SourceFile is the registry's view of an uploaded file.
type SourceFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}
