// Package config loads and validates opsgate configuration files.
//
// A configuration may be written in YAML, JSON or CUE; the format is chosen
// by file extension. Fields left out keep the values of Default. Durations
// are written as strings such as "30s".
//
// CUE files are checked against a built-in schema before export, so unknown
// runtime or script fields and malformed durations are reported with their
// file positions:
//
//	runtime: {
//		endpoints: ["org.scijava:scijava-ops-image:1.0.0"]
//		timeout:   "10s"
//	}
//	script: timeout: "1m"
//
// Validate applies struct-tag validation with go-playground/validator. The
// custom "coordinate" tag accepts group:artifact[:version] library
// coordinates.
package config
