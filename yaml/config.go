// Package yaml loads configuration overrides from YAML files.
package yaml

import (
	"bytes"
	"errors"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/fwojciec/docmirror"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads the YAML file at path and applies it on top of base.
//
// Fields missing from the file keep their base values. Lists replace the
// base list; headers are merged key by key. Environment variables in the
// file are expanded before parsing, and unknown keys are rejected.
func LoadConfig(path string, base docmirror.Config) (docmirror.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, docmirror.Errorf(docmirror.ENOTFOUND, "configuration file not found: %s", path)
	} else if err != nil {
		return base, err
	}
	return ParseConfig(data, base)
}

// ParseConfig applies YAML data on top of base. See LoadConfig.
func ParseConfig(data []byte, base docmirror.Config) (docmirror.Config, error) {
	cfg := clone(base)

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, docmirror.Errorf(docmirror.EINVALID, "failed to parse configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// clone copies the reference-typed fields of c so decoding never writes
// through to the caller's configuration.
func clone(c docmirror.Config) docmirror.Config {
	c.SitemapURLs = slices.Clone(c.SitemapURLs)
	c.Filter.Include = slices.Clone(c.Filter.Include)
	c.Filter.Exclude = slices.Clone(c.Filter.Exclude)
	c.FallbackPages = slices.Clone(c.FallbackPages)
	c.FilenamePrefixes = slices.Clone(c.FilenamePrefixes)
	c.Headers = maps.Clone(c.Headers)
	return c
}
