// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package bundle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/spf13/afero"
)

// ManifestName is the file every plugin directory must contain.
const ManifestName = "kbuild.yaml"

// DefaultPluginRoot is where plugins given by name are looked up.
const DefaultPluginRoot = "plugins"

var (
	// ErrNoBundles is returned when no valid bundle could be resolved.
	ErrNoBundles = errors.New("no valid bundle data was returned from the plugins specified")
	// ErrManifest is returned when a plugin manifest is missing or invalid.
	ErrManifest = errors.New("invalid plugin manifest")
	// ErrPluginFile is returned when the plugin list file cannot be read or parsed.
	ErrPluginFile = errors.New("failed to read plugin list file")
)

// SourceOptions select the plugins to build.
type SourceOptions struct {
	File        string   // plugin list file, local path or go-getter URL
	Plugins     []string // plugin names, resolved under PluginRoot
	PluginPaths []string // explicit plugin directories
	PluginRoot  string   // defaults to DefaultPluginRoot
}

type manifest struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Output  string            `yaml:"output"`
	Watch   []string          `yaml:"watch"`
	Ignore  []string          `yaml:"ignore"`
	Env     map[string]string `yaml:"env"`
	Stats   string            `yaml:"stats"`
}

func (m manifest) config(dir string) Config {
	return Config{
		Dir:     dir,
		Command: m.Command,
		Args:    m.Args,
		Output:  m.Output,
		Watch:   m.Watch,
		Ignore:  m.Ignore,
		Env:     m.Env,
		Stats:   m.Stats,
	}
}

// Load resolves the selected plugins into descriptors, in order: list file entries, then names,
// then paths. Invalid plugins are skipped with a warning; duplicates by name keep the first.
// Ordinals are assigned to the bundles that survive, starting at zero.
func Load(ctx context.Context, opts SourceOptions) ([]Descriptor, error) {
	fs := FsFactory()
	logger := ctxlog.Logger(ctx)

	if opts.PluginRoot == "" {
		opts.PluginRoot = DefaultPluginRoot
	}

	var dirs []string

	if opts.File != "" {
		entries, err := readPluginFile(ctx, fs, opts.File)
		if err != nil {
			return nil, err
		}

		base := filepath.Dir(opts.File)
		if !isLocal(fs, opts.File) {
			base = "."
		}

		for _, e := range entries {
			dirs = append(dirs, resolveEntry(e, base, opts.PluginRoot))
		}
	}

	for _, name := range opts.Plugins {
		if name = strings.TrimSpace(name); name != "" {
			dirs = append(dirs, filepath.Join(opts.PluginRoot, name))
		}
	}

	for _, p := range opts.PluginPaths {
		if p = strings.TrimSpace(p); p != "" {
			dirs = append(dirs, p)
		}
	}

	var (
		merr    *multierror.Error
		bundles []Descriptor
		seen    = make(map[string]struct{})
	)

	for _, dir := range dirs {
		d, err := readManifest(fs, dir)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}

		if _, ok := seen[d.Name]; ok {
			logger.Debug("skipping duplicate plugin", "name", d.Name, "dir", dir)
			continue
		}

		seen[d.Name] = struct{}{}
		d.Index = len(bundles)
		bundles = append(bundles, d)
	}

	if err := merr.ErrorOrNil(); err != nil {
		logger.Warn("skipped invalid plugins", "error", err.Error())
	}

	if len(bundles) == 0 {
		return nil, errors.Join(ErrNoBundles, merr.ErrorOrNil())
	}

	logger.Debug("resolved bundles", "count", len(bundles))

	return bundles, nil
}

// resolveEntry treats entries that look like paths as directories relative to the list
// file, everything else as a plugin name.
func resolveEntry(entry, base, root string) string {
	entry = strings.TrimSpace(entry)

	switch {
	case filepath.IsAbs(entry):
		return entry
	case strings.HasPrefix(entry, "."), strings.ContainsRune(entry, '/'), strings.ContainsRune(entry, filepath.Separator):
		return filepath.Join(base, entry)
	default:
		return filepath.Join(root, entry)
	}
}

func readManifest(fs afero.Fs, dir string) (Descriptor, error) {
	path := filepath.Join(dir, ManifestName)

	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s: %w", ErrManifest, path, err)
	}

	var m manifest
	if err := yaml.UnmarshalWithOptions(b, &m, yaml.Strict()); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s: %w", ErrManifest, path, err)
	}

	if m.Command == "" {
		return Descriptor{}, fmt.Errorf("%w: %s: command is required", ErrManifest, path)
	}

	if m.Name == "" {
		m.Name = filepath.Base(filepath.Clean(dir))
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	return Descriptor{Name: m.Name, Config: m.config(dir)}, nil
}

func readPluginFile(ctx context.Context, fs afero.Fs, src string) ([]string, error) {
	var (
		b   []byte
		err error
	)

	if isLocal(fs, src) {
		b, err = afero.ReadFile(fs, src)
	} else {
		b, err = getURL(ctx, src)
	}

	if err != nil {
		return nil, errors.Join(ErrPluginFile, err)
	}

	var entries []string
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPluginFile, src, err)
	}

	return entries, nil
}

func isLocal(fs afero.Fs, src string) bool {
	ok, err := afero.Exists(fs, src)
	return ok && err == nil
}
