// Package output renders command results for the moonlink CLI.
//
// A Formatter writes one value as a key/value table, JSON or YAML. Tables
// are built from struct fields; the json tag names the row and a
// `table:"-"` tag hides it.
package output
