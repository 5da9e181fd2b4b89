// Package config loads ambient veil configuration from local and global
// YAML files with precedence rules. It is internal; CLI code maps flags
// and files into scan configuration.
package config
