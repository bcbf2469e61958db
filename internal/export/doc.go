// Package export converts fully normalized expressions into plain data and
// renders that data as JSON, YAML, or TOML.
//
// Only expressions built from literals, records, lists, optionals, and
// union values can be exported. Functions, types, and terms stuck on a
// variable are rejected with an *ExportError naming the path to the
// offending value.
//
// Conversion rules:
//   - Records become objects; record keys keep normal-form (sorted) order
//   - A List of { mapKey : Text, mapValue : T } becomes an object in list order
//   - Some x is x and None T is null
//   - A union value is its payload; an alternative without payload is its label
package export
