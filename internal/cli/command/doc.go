// Package command defines the sessionguard-server command line.
//
// Commands:
//
//   - serve: run the HTTP server (also the default action)
//   - check-config: load, verify and print the effective configuration
//   - hash-password: hash a password with the configured argon2 parameters
//   - version: print build information
//
// Every command reads configuration the same way: defaults, then the file
// named by --config, then SESSIONGUARD_* variables (after --env-file), then
// --set key=value overrides.
package command
