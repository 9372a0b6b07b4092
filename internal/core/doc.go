// Package core provides the business logic for AGS import operations.
//
// This package is the heart of the importer, containing all domain logic
// independent of any transport layer. It can be used by the HTTP server,
// the CLI, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Mapping Descriptors: each binds one AGS group to one entity label,
//     with field kinds, a unique key and an optional parent link.
//   - Registry: the immutable, validated set of descriptors.
//   - Pipeline: project, validate and reconcile, run per descriptor.
//   - Service: the entry point that stages summaries and commits them.
//
// # Registry
//
// Descriptors are built in Go (see package tables) or loaded from YAML with
// [LoadDescriptors], then validated once by [NewRegistry]:
//
//	reg, err := core.NewRegistry("projectId", core.MappingDescriptor{
//	    ID: "location", Group: "LOCA", Label: "location",
//	    Fields: []core.FieldMapping{
//	        {Column: "LOCA_ID", Field: "name", Kind: core.KindText},
//	    },
//	    UniqueKey: []string{"name", "projectId"},
//	    Inherited: []string{"projectId"},
//	})
//
// # Summarize and Commit
//
// An import is two steps. [Summarize] reads the store only and reports, for
// every descriptor, how many records are new and how many already exist:
//
//  1. [Project] picks the descriptor's columns out of the AGS group
//  2. [Validate] coerces each cell to its declared kind
//  3. [Reconcile] matches records to stored entities with one query per batch
//
// Pipelines run concurrently, parents before children. When a parent fails
// its descendants are skipped. [Commit] later writes a staged summary inside
// one store transaction.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - AGS001-AGS004: Malformed documents and encoding problems
//   - MAP001-MAP003: Descriptor configuration and orphan records
//   - STO001-STO006: Store errors (constraints, connections, locks)
//   - IMP001-IMP006: Import errors (capacity, unknown run, cancelled)
//   - FILE001-FILE003: File errors (size, empty, read)
package core
