package db

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultVectorField is the vector attribute name used when none is given.
const DefaultVectorField = "vector"

// DistanceMetric of a vector field.
type DistanceMetric string

// Distance metrics supported by FT.CREATE.
const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
)

// VectorAlgorithm of a vector field.
type VectorAlgorithm string

// Vector index algorithms.
const (
	VectorFlat VectorAlgorithm = "FLAT"
	VectorHNSW VectorAlgorithm = "HNSW"
)

// ParseVectorAlgorithm accepts "flat" or "hnsw" in any case; empty means FLAT.
func ParseVectorAlgorithm(s string) (VectorAlgorithm, error) {
	switch {
	case s == "", strings.EqualFold(s, string(VectorFlat)):
		return VectorFlat, nil
	case strings.EqualFold(s, string(VectorHNSW)):
		return VectorHNSW, nil
	default:
		return "", fmt.Errorf("unknown vector algorithm %q", s)
	}
}

// VectorField is the FLOAT32 vector attribute of an index.
type VectorField struct {
	Name      string
	Dim       int
	Algorithm VectorAlgorithm // FLAT when empty
	Distance  DistanceMetric  // COSINE when empty
	// HNSW only; zero keeps the server default.
	M           int
	EFConstruct int
}

// IndexDefinition is an FT index over the HASH documents under Prefix.
type IndexDefinition struct {
	Name    string
	Prefix  string
	Numeric []string
	Vector  VectorField
}

// Validate checks names and the vector attribute.
func (d *IndexDefinition) Validate() error {
	if d.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(d.Name) {
		return fmt.Errorf("index name %q contains invalid characters", d.Name)
	}
	if d.Prefix == "" {
		return errors.New("key prefix is required")
	}
	if d.Vector.Dim <= 0 {
		return fmt.Errorf("vector dimension %d must be positive", d.Vector.Dim)
	}
	switch d.Vector.Algorithm {
	case "", VectorFlat, VectorHNSW:
	default:
		return fmt.Errorf("unknown vector algorithm %q", d.Vector.Algorithm)
	}

	seen := map[string]bool{d.VectorName(): true}
	for _, f := range d.Numeric {
		if f == "" {
			return errors.New("numeric field name is required")
		}
		if seen[f] {
			return fmt.Errorf("duplicate field name %q", f)
		}
		seen[f] = true
	}
	return nil
}

// VectorName returns the vector attribute name, DefaultVectorField when unset.
func (d *IndexDefinition) VectorName() string {
	if d.Vector.Name == "" {
		return DefaultVectorField
	}
	return d.Vector.Name
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
