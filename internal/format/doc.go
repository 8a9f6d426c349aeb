// Package format renders context pack results as indented JSON or as
// plain text for terminals.
package format
