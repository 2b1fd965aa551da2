// Package config loads the wabridge YAML configuration. ${VAR} references
// are expanded from the environment before parsing, durations are given as
// strings like "30s", and Validate enforces the startup-fatal requirements
// (notably a connection string for the sqlite session store backend).
package config
