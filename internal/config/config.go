// Package config loads the optional JSON files the viewer reads at startup.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"globe/viewer/source"

	"github.com/juju/errors"
)

// MaxFileSize bounds any config file read by this package.
const MaxFileSize = 1 << 20

// ReadJSON decodes the .json file at path into v after checking its extension
// and size.
func ReadJSON(path string, v any) error {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return errors.NotValidf("config file extension %q (want .json)", ext)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return errors.Annotatef(err, "stat %q", clean)
	}
	if info.Size() > MaxFileSize {
		return errors.NotValidf("config file %q of %d bytes (max %d)", clean, info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return errors.Annotatef(err, "reading %q", clean)
	}
	return errors.Annotatef(json.Unmarshal(data, v), "parsing %q", clean)
}

// WriteJSON replaces the file at path with the indented encoding of v. The
// content goes to a temporary sibling first so readers never see a partial file.
func WriteJSON(path string, v any) error {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return errors.NotValidf("config file extension %q (want .json)", ext)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(clean), filepath.Base(clean)+".*")
	if err != nil {
		return errors.Annotatef(err, "creating temp file for %q", clean)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Annotatef(err, "writing %q", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(os.Rename(tmp.Name(), clean), "replacing %q", clean)
}

// SourcesFile is the on-disk shape of an extra source registry.
type SourcesFile struct {
	// ReplaceBuiltin drops the built-in sources instead of extending them.
	ReplaceBuiltin bool                `json:"replace_builtin,omitempty"`
	Sources        []source.Descriptor `json:"sources"`
}

// LoadSources returns the registry to use. With an empty path it is the
// built-in list; otherwise the file's sources are appended to it, replacing
// built-in entries of the same name in place.
func LoadSources(path string) (*source.Registry, error) {
	if path == "" {
		return source.NewRegistry(source.Builtin())
	}
	var f SourcesFile
	if err := ReadJSON(path, &f); err != nil {
		return nil, errors.Trace(err)
	}

	var list []source.Descriptor
	if !f.ReplaceBuiltin {
		list = source.Builtin()
	}
	for _, d := range f.Sources {
		replaced := false
		for i := range list {
			if list[i].Name == d.Name {
				list[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, d)
		}
	}
	reg, err := source.NewRegistry(list)
	return reg, errors.Annotatef(err, "sources from %q", path)
}
