package interfaces

import "testing"

func TestDataQualityReportHasIssues(t *testing.T) {
	tests := []struct {
		name   string
		report *DataQualityReport
		want   bool
	}{
		{"nil report", nil, false},
		{"clean report", &DataQualityReport{DuplicateCodes: []string{}}, false},
		{"duplicate codes", &DataQualityReport{DuplicateCodes: []string{"1"}, DuplicateCodeRows: 1}, true},
		{"duplicate tags", &DataQualityReport{DuplicateTags: []string{"kk"}}, true},
		{"rejected tag columns", &DataQualityReport{RejectedTagColumns: []string{"lang:pt BR"}}, true},
		{"rows without designations", &DataQualityReport{RowsWithoutDesignations: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.HasIssues(); got != tt.want {
				t.Errorf("HasIssues() = %v, want %v", got, tt.want)
			}
		})
	}
}
