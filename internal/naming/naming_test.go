package naming

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFilenameConcatenation(t *testing.T) {
	tests := []struct {
		name   string
		fields [FieldCount]string
		want   string
	}{
		{
			name:   "documented example",
			fields: [FieldCount]string{"CR", "B1", "Y1", "E01", "S1", "T1"},
			want:   "CRB1Y1E01S1T1.csv",
		},
		{
			name:   "empty fields contribute nothing",
			fields: [FieldCount]string{"CR", "", "Y1", "", "S1", ""},
			want:   "CRY1S1.csv",
		},
		{
			name:   "all empty",
			fields: [FieldCount]string{},
			want:   ".csv",
		},
		{
			name:   "longer values",
			fields: [FieldCount]string{"FLEX", "B12", "Y03", "E99", "S10", "T07"},
			want:   "FLEXB12Y03E99S10T07.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := New("Endo_Data", tt.fields)
			if got := spec.Filename(); got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
			wantPath := filepath.Join("Endo_Data", tt.want)
			if got := spec.FullPath(); got != wantPath {
				t.Errorf("FullPath() = %q, want %q", got, wantPath)
			}
		})
	}
}

func TestSetFieldRecomputesImmediately(t *testing.T) {
	spec := New("data", [FieldCount]string{"CR", "B1", "Y1", "E01", "S1", "T1"})

	if err := spec.SetField(FieldTrial, "T2"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if got := spec.Filename(); got != "CRB1Y1E01S1T2.csv" {
		t.Errorf("Filename() = %q after field edit", got)
	}

	spec.SetOutputFolder("elsewhere")
	if got := spec.FullPath(); got != filepath.Join("elsewhere", "CRB1Y1E01S1T2.csv") {
		t.Errorf("FullPath() = %q after folder edit", got)
	}
}

func TestSetFieldRange(t *testing.T) {
	spec := New("data", [FieldCount]string{})

	if err := spec.SetField(-1, "x"); err == nil {
		t.Error("expected error for negative index")
	}
	if err := spec.SetField(FieldCount, "x"); err == nil {
		t.Error("expected error for index past the last field")
	}
}

func TestValidate(t *testing.T) {
	spec := New("data", [FieldCount]string{"CR", "B1", "Y1", "E01", "S1", "T1"})
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}

	if err := spec.SetField(FieldYear, "  "); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	err := spec.Validate()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "year" {
		t.Errorf("expected year flagged, got %q", validationErr.Field)
	}

	if err := spec.SetField(FieldYear, "Y1"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	spec.SetOutputFolder("")
	if err := spec.Validate(); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for folder, got %v", err)
	}
}
