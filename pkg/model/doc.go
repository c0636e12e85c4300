// Package model defines the declarative wizard configuration authored by the
// external form builder (fields, steps, conditions, pricing rules) plus the
// FormData map that carries every collected value. The configuration types are
// immutable inputs to the engine; only FormData is mutated at runtime. Values
// are keyed by FieldDefinition.Name, never by ID, and are restricted to string
// or bool so snapshots encode deterministically across JSON and msgpack.
package model
