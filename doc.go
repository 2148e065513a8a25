// Package pds4kit migrates PDS3 product labels to PDS4 XML labels. It
// contains the migration pipeline and various helpers, and sub-packages hold
// the implementations of each stage that depend on other software.
//
// Every migration runs the same pipeline, and interfaces for each stage are
// defined in this package.
//
// 1. Source
//
//	A pds4kit.Source yields Items: a data file, the detached or attached
//	PDS3 label describing it, and the path of the PDS4 label to generate.
//	The file package walks directory trees in sorted order and derives the
//	label path of legacy products from the data file name.
//
// 2. LabelReader
//
//	The LabelReader parses the PDS3 label of an item into a label.Label,
//	an ordered tree of keywords, objects and groups.
//
// 3. Mapper
//
//	The Mapper's job is to take a label.Label and turn it into the lookup
//	dictionary a template is expanded against. The dictionary starts as the
//	flattened label, and instrument specific mappers in the instrument
//	package add derived values: resolved targets and their NAIF ids, the
//	observation purpose, wavelength ranges, logical identifiers and
//	normalized times.
//
// 4. Renderer
//
//	The Renderer expands a compiled template against the dictionary. See
//	the template package for the template language.
//
// 5. Sink
//
//	The Sink stores the generated label, on local disk (file.Sink) or in an
//	S3 bucket (aws/s3.Sink). Existing labels are kept unless the Migrator
//	is told to replace them.
//
// A Migrator drives each item through these stages, several at once when
// its Concurrency is raised. A failure in any stage is logged and recorded
// in the Report, and the run moves on to the next item. A Ledger, backed by
// LevelDB or BoltDB, can keep results across runs.
package pds4kit
