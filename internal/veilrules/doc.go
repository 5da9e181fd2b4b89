// Package veilrules implements the built-in and pack-loaded rule set that
// the line matcher runs against every line of scanned text.
package veilrules
