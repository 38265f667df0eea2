// Package binding loads the metadata that describes generated wrapper
// classes: their native names, operations with ownership and direction of
// every parameter, properties and events.
//
// Documents are TOML, YAML or JSON and are checked against an embedded
// JSON schema before decoding. File.Defs turns a document into class.Defs
// ordered so that parents come first, ready for bridge.Bind.
package binding
