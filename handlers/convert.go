package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/giygas/fsh-designations/config"
	"github.com/giygas/fsh-designations/converter"
	"github.com/giygas/fsh-designations/fsh"
	"github.com/giygas/fsh-designations/logging"
	"github.com/giygas/fsh-designations/tabular"
	"github.com/giygas/fsh-designations/validation"
)

// mappingParams maps query parameters to roles. "uz" is an alias of
// "display" and both are read through config.DisplayColumn.
var mappingParams = []struct {
	param string
	role  fsh.Role
}{
	{"code", fsh.RoleCode},
	{"ru", fsh.RoleRussian},
	{"en", fsh.RoleEnglish},
	{"la", fsh.RoleLatin},
}

// formatFromContentType guesses the body format from its media type
func formatFromContentType(contentType string) tabular.Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "text/csv":
		return tabular.FormatCSV
	case "text/tab-separated-values":
		return tabular.FormatTSV
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return tabular.FormatXLSX
	}
	return ""
}

func (h *HTTPHandler) convertOptions(r *http.Request) (converter.Options, tabular.Options, error) {
	query := r.URL.Query()
	opts := converter.Options{
		Input:       "request body",
		Mapping:     fsh.RoleMapping{},
		ExtraPrefix: h.defaults.ExtraPrefix,
		Mode:        converter.ModeHTTP,
	}

	for _, p := range mappingParams {
		value := query.Get(p.param)
		if value == "" {
			continue
		}
		if err := validation.ValidateColumnName(value); err != nil {
			return opts, tabular.Options{}, fmt.Errorf("parameter %s: %w", p.param, err)
		}
		opts.Mapping[p.role] = value
	}

	for _, param := range []string{"display", "uz"} {
		if value := query.Get(param); value != "" {
			if err := validation.ValidateColumnName(value); err != nil {
				return opts, tabular.Options{}, fmt.Errorf("parameter %s: %w", param, err)
			}
		}
	}
	display, err := config.DisplayColumn(query.Get("display"), query.Get("uz"))
	if err != nil {
		return opts, tabular.Options{}, err
	}
	if display != "" {
		opts.Mapping[fsh.RolePrimaryDisplay] = display
	}

	if prefix := query.Get("prefix"); prefix != "" {
		opts.ExtraPrefix = prefix
	}

	srcOpts := tabular.Options{
		Sheet:    query.Get("sheet"),
		Encoding: h.defaults.Encoding,
	}
	if enc := query.Get("encoding"); enc != "" {
		srcOpts.Encoding = enc
	}

	switch name := query.Get("format"); {
	case name != "":
		format, err := tabular.ParseFormat(name)
		if err != nil {
			return opts, srcOpts, err
		}
		srcOpts.Format = format
	default:
		srcOpts.Format = formatFromContentType(r.Header.Get("Content-Type"))
		if srcOpts.Format == "" {
			srcOpts.Format = tabular.FormatCSV
		}
	}

	return opts, srcOpts, nil
}

// Convert converts the request body and returns the FSH document. Nothing
// is written until the whole body has converted, so a failure never yields a
// truncated document.
func (h *HTTPHandler) Convert(w http.ResponseWriter, r *http.Request) {
	opts, srcOpts, err := h.convertOptions(r)
	if err != nil {
		logging.Warn("Unusual user input", "query", r.URL.RawQuery, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := tabular.NewReader(r.Body, opts.Input, srcOpts)
	if err != nil {
		h.respondConversionError(w, err)
		return
	}
	defer src.Close()

	var buf bytes.Buffer
	summary, err := converter.Convert(r.Context(), src, &buf, opts)
	if err != nil {
		h.respondConversionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Rows-Emitted", strconv.Itoa(summary.RowsEmitted))
	w.Header().Set("X-Rows-Skipped", strconv.Itoa(summary.RowsSkipped))
	w.Header().Set("X-Designations", strconv.Itoa(summary.Designations))
	if summary.Quality.HasIssues() {
		w.Header().Set("X-Duplicate-Codes", strings.Join(summary.Quality.DuplicateCodes, ","))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// respondConversionError maps conversion failures to status codes
func (h *HTTPHandler) respondConversionError(w http.ResponseWriter, err error) {
	var (
		cfgErr  *fsh.ConfigurationError
		colErr  *fsh.UnknownColumnError
		readErr *fsh.SourceReadError
		sizeErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &sizeErr):
		RespondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", sizeErr.Limit))
	case errors.As(err, &cfgErr), errors.As(err, &colErr):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &readErr):
		RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RespondWithError(w, http.StatusServiceUnavailable, "conversion interrupted")
	default:
		logging.Error("Conversion request failed", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "conversion failed")
	}
}
