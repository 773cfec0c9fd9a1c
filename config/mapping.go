package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/giygas/fsh-designations/fsh"
	"gopkg.in/yaml.v3"
)

// MappingFile is the YAML form of a role mapping:
//
//	code: Code
//	primary_display: Uzbek   # "uz" is accepted as an alias
//	ru: Russian
//	en: English
//	la: Latin
//	sheet: Drugs
//	extra_prefix: lang
type MappingFile struct {
	Code           string `yaml:"code"`
	PrimaryDisplay string `yaml:"primary_display"`
	Uz             string `yaml:"uz"`
	Ru             string `yaml:"ru"`
	En             string `yaml:"en"`
	La             string `yaml:"la"`
	Sheet          string `yaml:"sheet"`
	ExtraPrefix    string `yaml:"extra_prefix"`
	Encoding       string `yaml:"encoding"`
}

// LoadMappingFile reads and validates a YAML mapping file
func LoadMappingFile(path string) (*MappingFile, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	m, err := ParseMapping(body)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}
	return m, nil
}

// ParseMapping decodes a YAML mapping document; unknown keys are rejected
func ParseMapping(body []byte) (*MappingFile, error) {
	m := &MappingFile{}
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	display, err := DisplayColumn(m.PrimaryDisplay, m.Uz)
	if err != nil {
		return nil, err
	}
	m.PrimaryDisplay = display

	return m, nil
}

// DisplayColumn reconciles the primary display column with its "uz" alias.
// Either may be empty; two different non-empty values are an error.
func DisplayColumn(display, uz string) (string, error) {
	display = strings.TrimSpace(display)
	uz = strings.TrimSpace(uz)
	if uz != "" && display != "" && uz != display {
		return "", fmt.Errorf("primary_display %q and uz %q disagree", display, uz)
	}
	if display == "" {
		return uz, nil
	}
	return display, nil
}

// RoleMapping converts the file into the resolver's role mapping
func (m *MappingFile) RoleMapping() fsh.RoleMapping {
	return fsh.RoleMapping{
		fsh.RoleCode:           m.Code,
		fsh.RolePrimaryDisplay: m.PrimaryDisplay,
		fsh.RoleRussian:        m.Ru,
		fsh.RoleEnglish:        m.En,
		fsh.RoleLatin:          m.La,
	}
}

// Merge overrides file values with the non-empty values of other. other may
// set PrimaryDisplay and Uz only when they agree.
func (m *MappingFile) Merge(other MappingFile) error {
	display, err := DisplayColumn(other.PrimaryDisplay, other.Uz)
	if err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&m.Code, other.Code)
	set(&m.PrimaryDisplay, display)
	set(&m.Ru, other.Ru)
	set(&m.En, other.En)
	set(&m.La, other.La)
	set(&m.Sheet, other.Sheet)
	set(&m.ExtraPrefix, other.ExtraPrefix)
	set(&m.Encoding, other.Encoding)
	return nil
}
