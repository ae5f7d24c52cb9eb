package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact formats
const (
	FormatLinear = "linear"
	FormatForest = "forest"
)

// artifact is the on-disk envelope of a trained model
type artifact struct {
	Format string
	Linear *Linear
	Forest *Forest
}

// Save writes a trained model to disk
func Save(path string, m Model) error {
	var a artifact
	switch t := m.(type) {
	case *Linear:
		a = artifact{Format: FormatLinear, Linear: t}
	case *Forest:
		a = artifact{Format: FormatForest, Forest: t}
	default:
		return fmt.Errorf("cannot save model of type %T", m)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(a); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return f.Close()
}

// Load reads a trained model from disk
func Load(path string) (Model, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}

	switch a.Format {
	case FormatLinear:
		if a.Linear == nil {
			return nil, fmt.Errorf("model %s: missing linear parameters", path)
		}
		if err := a.Linear.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		return a.Linear, nil
	case FormatForest:
		if a.Forest == nil {
			return nil, fmt.Errorf("model %s: missing forest parameters", path)
		}
		if err := a.Forest.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		return a.Forest, nil
	default:
		return nil, fmt.Errorf("model %s: unknown format %q", path, a.Format)
	}
}
