// Package buildinfo exposes build information for sessionguard.
//
//   - Version: Semantic version (e.g., "1.0.0")
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go toolchain that built the binary
//
// The first three are injected via ldflags; the metric package publishes
// them as the sessionguard_build_info gauge.
package buildinfo
