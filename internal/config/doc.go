// Package config loads and validates deployment plan documents.
//
// A plan document is the already-resolved ingestion format: a flat list of
// resource records plus secret-binding requests and an optional recovery
// section. The loader applies include flags, checks referential integrity,
// and hands the records to the graph builder; it is deliberately not a
// configuration language.
package config
