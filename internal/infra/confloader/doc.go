// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader that supports multiple
// sources using koanf as the underlying library.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (SESSIONGUARD_*), optionally seeded from a dotenv file
//  3. Configuration file (YAML)
//  4. Values already present in the target struct (defaults)
//
// Watcher reports changes of a configuration file so that settings which
// are safe to change at runtime, such as the log level, can be reapplied.
package confloader
