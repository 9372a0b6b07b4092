// Package tables holds the built-in geotechnical mapping descriptors:
// locations (LOCA), their samples (SAMP) and geology (GEOL), and moisture
// content tests on samples (LNMC).
package tables

import "github.com/JonMunkholm/geoimport/internal/core"

// ScopeField is the field every root entity is scoped by.
const ScopeField = "projectId"

// Geotechnical returns the built-in descriptors, parents first.
func Geotechnical() []core.MappingDescriptor {
	return []core.MappingDescriptor{
		location(),
		sample(),
		geology(),
		moistureContent(),
	}
}

// Registry builds a registry over the built-in descriptors.
func Registry() (*core.Registry, error) {
	return core.NewRegistry(ScopeField, Geotechnical()...)
}
