// Package config loads, validates, and persists ccuflux configuration.
//
// Configuration is a single YAML document. Loading order:
//  1. Hardcoded defaults
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern CCUFLUX_SECTION_KEY, for
// example CCUFLUX_CCU_ADDRESS or CCUFLUX_INFLUXDB_TOKEN.
//
// Unlike most service configuration, parts of this document are writable at
// runtime: the admin API edits the whitelist, the selected datapoints, the
// buffer size, and the controller address, then persists the document back
// with Save. Every such write is followed by a pipeline reload, so the file
// on disk is always the source of truth for the next bootstrap.
package config
