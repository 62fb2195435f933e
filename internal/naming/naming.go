// Package naming derives the experiment log filename from six ordered
// fields. The filename contract is the bare concatenation of the fields
// plus ".csv", with no inserted delimiters.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// FieldCount is the number of ordered naming fields.
const FieldCount = 6

// Field indexes into the ordered naming fields.
const (
	FieldExperimentType = iota
	FieldModelType
	FieldYear
	FieldExperience
	FieldSubject
	FieldTrial
)

var fieldNames = [FieldCount]string{
	"experiment type",
	"model type",
	"year",
	"experience",
	"subject",
	"trial",
}

// FieldName returns the display name for a field index.
func FieldName(index int) string {
	if index < 0 || index >= FieldCount {
		return "unknown"
	}
	return fieldNames[index]
}

// ValidationError reports a naming field that is required but empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("naming field %q must not be empty", e.Field)
}

// Spec holds the six ordered fields and the output folder, and keeps the
// derived filename and full path current. Every mutation recomputes the
// derived values immediately.
type Spec struct {
	mu           sync.Mutex
	fields       [FieldCount]string
	outputFolder string
	filename     string
	fullPath     string
}

// New creates a Spec with the given initial field values.
func New(outputFolder string, fields [FieldCount]string) *Spec {
	s := &Spec{
		fields:       fields,
		outputFolder: outputFolder,
	}
	s.recompute()
	return s
}

// SetField updates one ordered field. Out-of-range indexes are rejected.
func (s *Spec) SetField(index int, value string) error {
	if index < 0 || index >= FieldCount {
		return fmt.Errorf("naming field index out of range: %d", index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[index] = value
	s.recompute()
	return nil
}

// SetOutputFolder updates the destination folder.
func (s *Spec) SetOutputFolder(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputFolder = folder
	s.recompute()
}

// recompute rebuilds the derived filename and full path. Callers hold the
// lock (or own the Spec exclusively during construction).
func (s *Spec) recompute() {
	var b strings.Builder
	for _, field := range s.fields {
		b.WriteString(field)
	}
	b.WriteString(".csv")
	s.filename = b.String()
	s.fullPath = filepath.Join(s.outputFolder, s.filename)
}

// Filename returns the derived filename.
func (s *Spec) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}

// FullPath returns the derived destination path.
func (s *Spec) FullPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullPath
}

// OutputFolder returns the current destination folder.
func (s *Spec) OutputFolder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputFolder
}

// Field returns the value of one ordered field.
func (s *Spec) Field(index int) string {
	if index < 0 || index >= FieldCount {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[index]
}

// Validate rejects empty fields before logging starts. Empty values are
// permitted while editing; they only become an error at start time.
func (s *Spec) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, field := range s.fields {
		if strings.TrimSpace(field) == "" {
			return &ValidationError{Field: fieldNames[i]}
		}
	}
	if strings.TrimSpace(s.outputFolder) == "" {
		return &ValidationError{Field: "output folder"}
	}
	return nil
}
