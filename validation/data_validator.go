// Package validation provides non-fatal data quality checks for conversions
// and validation of user supplied column names.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/fsh-designations/fsh"
	"github.com/giygas/fsh-designations/interfaces"
)

const maxSampleCodes = 10

// QualityCollector accumulates a DataQualityReport while rows stream through.
// Duplicate codes are only reported; every row is still emitted.
type QualityCollector struct {
	seenCodes map[string]int
	report    *interfaces.DataQualityReport
}

// NewQualityCollector creates a collector for a run using plan.
func NewQualityCollector(plan fsh.FieldPlan) *QualityCollector {
	return &QualityCollector{
		seenCodes: make(map[string]int),
		report: &interfaces.DataQualityReport{
			DuplicateCodes:              []string{},
			DuplicateTags:               DuplicateTags(plan),
			RejectedTagColumns:          []string{},
			RowsWithoutDesignationsCode: []string{},
		},
	}
}

// Observe records one emitted block.
func (c *QualityCollector) Observe(block fsh.Block) {
	c.seenCodes[block.Code]++
	switch n := c.seenCodes[block.Code]; {
	case n == 2:
		c.report.DuplicateCodes = append(c.report.DuplicateCodes, block.Code)
		c.report.DuplicateCodeRows++
	case n > 2:
		c.report.DuplicateCodeRows++
	}

	if len(block.Designations) == 0 {
		c.report.RowsWithoutDesignations++
		if len(c.report.RowsWithoutDesignationsCode) < maxSampleCodes {
			c.report.RowsWithoutDesignationsCode = append(c.report.RowsWithoutDesignationsCode, block.Code)
		}
	}
}

// RejectColumns records columns the resolver left out of the plan.
func (c *QualityCollector) RejectColumns(columns []string) {
	c.report.RejectedTagColumns = append(c.report.RejectedTagColumns, columns...)
}

// Report returns the collected report.
func (c *QualityCollector) Report() *interfaces.DataQualityReport {
	return c.report
}

// DuplicateTags lists tags that occur on more than one plan entry, in the
// order their second occurrence appears.
func DuplicateTags(plan fsh.FieldPlan) []string {
	counts := make(map[string]int, len(plan))
	dups := []string{}
	for _, e := range plan {
		counts[e.Tag]++
		if counts[e.Tag] == 2 {
			dups = append(dups, e.Tag)
		}
	}
	return dups
}

// ValidateColumnName checks a column name received from an untrusted caller.
func ValidateColumnName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("column name cannot be empty")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("column name must be valid UTF-8")
	}

	if utf8.RuneCountInString(name) > 128 {
		return fmt.Errorf("column name too long: maximum 128 characters")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("column name contains control characters")
		}
	}

	return nil
}
