package converter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giygas/fsh-designations/fsh"
	"github.com/giygas/fsh-designations/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapping() fsh.RoleMapping {
	return fsh.RoleMapping{
		fsh.RoleCode:           "code",
		fsh.RolePrimaryDisplay: "uz",
		fsh.RoleRussian:        "ru",
		fsh.RoleEnglish:        "en",
		fsh.RoleLatin:          "la",
	}
}

func minimalMapping() fsh.RoleMapping {
	return fsh.RoleMapping{fsh.RoleCode: "code", fsh.RolePrimaryDisplay: "uz"}
}

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

const drugsCSV = "code,uz,ru,en,la,lang:kk\n" +
	"0001,Abay,Абай,Abay,Abaium,\n" +
	",Nameless,Безымянный,,,\n" +
	"0002,Aspirin,Аспирин,,Acidum,Аспирин\n" +
	"0003,,Без названия,,,\n"

func TestConvertFileWritesDocument(t *testing.T) {
	input := writeInput(t, "drugs.csv", drugsCSV)

	summary, err := ConvertFile(context.Background(), Options{Input: input, Mapping: mapping()})
	require.NoError(t, err)

	want := `* #0001 "Abay"
  * ^designation[0].language = #ru
  * ^designation[=].value = "Абай"
  * ^designation[+].language = #en
  * ^designation[=].value = "Abay"
  * ^designation[+].language = #la
  * ^designation[=].value = "Abaium"

* #0002 "Aspirin"
  * ^designation[0].language = #ru
  * ^designation[=].value = "Аспирин"
  * ^designation[+].language = #la
  * ^designation[=].value = "Acidum"
  * ^designation[+].language = #kk
  * ^designation[=].value = "Аспирин"
`
	got, err := os.ReadFile(DefaultOutputPath(input, ""))
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	assert.Equal(t, DefaultOutputPath(input, ""), summary.Output)
	assert.Equal(t, 4, summary.RowsRead)
	assert.Equal(t, 2, summary.RowsEmitted)
	assert.Equal(t, 2, summary.RowsSkipped)
	assert.Equal(t, 6, summary.Designations)
	assert.Equal(t, []string{"ru", "en", "la", "kk"}, summary.Plan.Tags())
	require.NotNil(t, summary.Quality)
	assert.False(t, summary.Quality.HasIssues())
	assert.Positive(t, summary.Duration)
}

func TestConvertFileCustomOutputAndExtension(t *testing.T) {
	input := writeInput(t, "drugs.csv", "code,uz\n1,a\n")

	summary, err := ConvertFile(context.Background(), Options{
		Input:           input,
		Mapping:         minimalMapping(),
		OutputExtension: ".txt",
	})
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(input, ".csv")+".txt", summary.Output)

	out := filepath.Join(t.TempDir(), "concepts.fsh")
	summary, err = ConvertFile(context.Background(), Options{Input: input, Output: out, Mapping: minimalMapping()})
	require.NoError(t, err)
	assert.Equal(t, out, summary.Output)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "* #1 \"a\"\n", string(got))
}

func TestConvertFileFatalErrorsCreateNoOutput(t *testing.T) {
	tests := []struct {
		name    string
		mapping fsh.RoleMapping
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unmapped code",
			mapping: fsh.RoleMapping{fsh.RolePrimaryDisplay: "uz"},
			check: func(t *testing.T, err error) {
				var cfgErr *fsh.ConfigurationError
				require.True(t, errors.As(err, &cfgErr), "got %v", err)
				assert.Equal(t, fsh.RoleCode, cfgErr.Role)
			},
		},
		{
			name:    "unknown column",
			mapping: fsh.RoleMapping{fsh.RoleCode: "code", fsh.RolePrimaryDisplay: "uz", fsh.RoleEnglish: "english"},
			check: func(t *testing.T, err error) {
				var unknown *fsh.UnknownColumnError
				require.True(t, errors.As(err, &unknown), "got %v", err)
				assert.Equal(t, "english", unknown.Column)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, "drugs.csv", drugsCSV)
			_, err := ConvertFile(context.Background(), Options{Input: input, Mapping: tt.mapping})
			tt.check(t, err)
			assert.Equal(t, []string{"drugs.csv"}, listDir(t, filepath.Dir(input)))
		})
	}
}

func TestConvertFileMissingInput(t *testing.T) {
	_, err := ConvertFile(context.Background(), Options{
		Input:   filepath.Join(t.TempDir(), "missing.csv"),
		Mapping: mapping(),
	})
	var readErr *fsh.SourceReadError
	require.True(t, errors.As(err, &readErr), "got %v", err)
}

func TestConvertFileCancelledKeepsPreviousOutput(t *testing.T) {
	input := writeInput(t, "drugs.csv", drugsCSV)
	output := DefaultOutputPath(input, "")
	require.NoError(t, os.WriteFile(output, []byte("previous\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConvertFile(ctx, Options{Input: input, Mapping: mapping()})
	require.ErrorIs(t, err, context.Canceled)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(got))
	assert.ElementsMatch(t, []string{"drugs.csv", "drugs.fsh"}, listDir(t, filepath.Dir(input)))
}

// failingSource returns a read error after its rows run out.
type failingSource struct {
	rows []fsh.Row
	pos  int
}

func (s *failingSource) Columns() []string { return []string{"code", "uz"} }

func (s *failingSource) Next() (fsh.Row, int, error) {
	if s.pos >= len(s.rows) {
		return nil, 0, &fsh.SourceReadError{Source: "broken", Err: io.ErrUnexpectedEOF}
	}
	s.pos++
	return s.rows[s.pos-1], s.pos, nil
}

func (s *failingSource) Close() error { return nil }

func TestConvertStopsOnSourceError(t *testing.T) {
	src := &failingSource{rows: []fsh.Row{{"code": "1", "uz": "a"}}}

	var sb strings.Builder
	summary, err := Convert(context.Background(), src, &sb, Options{Input: "broken", Mapping: minimalMapping(), Mode: ModeHTTP})
	var readErr *fsh.SourceReadError
	require.True(t, errors.As(err, &readErr), "got %v", err)
	assert.Equal(t, 1, summary.RowsEmitted)
}

func TestConvertTSVWithDuplicates(t *testing.T) {
	input := "code\tuz\tlang:kk\tlang:KK\n" +
		"7\tSeven\t\t\n" +
		"7\tSeven again\tЖеті\t\n"

	src, err := tabular.NewReader(strings.NewReader(input), "dup.tsv", tabular.Options{Format: tabular.FormatTSV})
	require.NoError(t, err)

	var sb strings.Builder
	summary, err := Convert(context.Background(), src, &sb, Options{Input: "dup.tsv", Mapping: minimalMapping()})
	require.NoError(t, err)

	assert.Equal(t, "* #7 \"Seven\"\n\n* #7 \"Seven again\"\n  * ^designation[0].language = #kk\n  * ^designation[=].value = \"Жеті\"\n", sb.String())
	require.NotNil(t, summary.Quality)
	assert.Equal(t, []string{"7"}, summary.Quality.DuplicateCodes)
	assert.Equal(t, []string{"kk"}, summary.Quality.DuplicateTags)
	assert.Equal(t, 1, summary.Quality.RowsWithoutDesignations)
}

func TestConvertCountsBlankLinesAsSkipped(t *testing.T) {
	src, err := tabular.NewReader(strings.NewReader("code,uz\n1,a\n\n2,b\n"), "gaps.csv", tabular.Options{Format: tabular.FormatCSV})
	require.NoError(t, err)

	var sb strings.Builder
	summary, err := Convert(context.Background(), src, &sb, Options{Input: "gaps.csv", Mapping: minimalMapping()})
	require.NoError(t, err)

	assert.Equal(t, "* #1 \"a\"\n\n* #2 \"b\"\n", sb.String())
	assert.Equal(t, 3, summary.RowsRead)
	assert.Equal(t, 2, summary.RowsEmitted)
	assert.Equal(t, 1, summary.RowsSkipped)
}

func TestConvertFreeFormTagsAndRejectedColumns(t *testing.T) {
	input := "code,uz,lang:pt_BR,lang:pt BR\n" +
		"1,Bir,Um,ignored\n"

	src, err := tabular.NewReader(strings.NewReader(input), "tags.csv", tabular.Options{Format: tabular.FormatCSV})
	require.NoError(t, err)

	var sb strings.Builder
	summary, err := Convert(context.Background(), src, &sb, Options{Input: "tags.csv", Mapping: minimalMapping()})
	require.NoError(t, err)

	assert.Equal(t, "* #1 \"Bir\"\n  * ^designation[0].language = #pt_br\n  * ^designation[=].value = \"Um\"\n", sb.String())
	assert.Equal(t, []string{"pt_br"}, summary.Plan.Tags())
	require.NotNil(t, summary.Quality)
	assert.Equal(t, []string{"lang:pt BR"}, summary.Quality.RejectedTagColumns)
	assert.True(t, summary.Quality.HasIssues())
}

func TestConvertEmptyBodyProducesEmptyDocument(t *testing.T) {
	src, err := tabular.NewReader(strings.NewReader("code,uz\n"), "empty.csv", tabular.Options{Format: tabular.FormatCSV})
	require.NoError(t, err)

	var sb strings.Builder
	summary, err := Convert(context.Background(), src, &sb, Options{Mapping: minimalMapping()})
	require.NoError(t, err)
	assert.Empty(t, sb.String())
	assert.Zero(t, summary.RowsRead)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "data/drugs.fsh", DefaultOutputPath("data/drugs.xlsx", ""))
	assert.Equal(t, "drugs.out", DefaultOutputPath("drugs.csv", ".out"))
	assert.Equal(t, "drugs.fsh", DefaultOutputPath("drugs", ""))
}

func TestJobRunsScheduledConversion(t *testing.T) {
	input := writeInput(t, "drugs.csv", drugsCSV)

	job := NewJob(Options{Input: input, Mapping: mapping(), Mode: ModeCLI})
	assert.Equal(t, ModeScheduled, job.opts.Mode)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RowsEmitted)
}
