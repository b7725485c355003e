// Package autocommit commits a PlatformIO project after every firmware build
//
// Each successful build leaves a commit whose message names the firmware
// version it produced, so any binary flashed onto a device can be traced
// back to the exact source tree:
//
//	Auto-commit: build 1.2.3
//
// The version is read from firmware_version.txt in the project root; when
// the file is missing the commit says "unknown".
//
// # Quick Start
//
//	# Inside a PlatformIO project that is a git repository
//	autocommit install
//
//	# Add the printed line to each [env] in platformio.ini
//	extra_scripts = post:autocommit_hook.py
//
//	# Build as usual
//	pio run
//
// # Key Features
//
//   - Post-build commits: stages everything and commits after each build
//   - Never breaks the build: git failures are printed, the build still succeeds
//   - Parallel environments: a per-project lock keeps concurrent hooks apart
//   - Watch mode: commits when .pio/build/*/firmware.bin is rewritten
//   - Dry run: shows the commit and the changed paths without committing
//
// # Module Structure
//
//   - cmd/autocommit: Command-line interface
//   - internal/hook: The post-build action
//   - internal/version: Version file and commit message
//   - internal/git: Git operations
//   - internal/platformio: Extra script installation
//   - internal/watch: Artifact watcher
//   - internal/config: Defaults, .env, YAML, environment and flags
//   - internal/lock: Per-project file locking
//   - internal/logger: Console output and debug logs
//   - internal/errors: Error handling utilities
//
// # Implementation Notes
//
// autocommit uses the command-line git executable rather than a Go git
// library so repository hooks and configuration apply unchanged. It never
// pushes.
package autocommit
