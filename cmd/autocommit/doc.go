// Package main implements autocommit, a post-build commit hook for
// PlatformIO firmware projects
//
// After every successful build autocommit reads firmware_version.txt from
// the project root, stages everything and commits it as
//
//	Auto-commit: build <version>
//
// When the version file is missing the version is "unknown". Git failures
// are printed but never fail the build.
//
// # Basic Usage
//
//	autocommit install          # Write autocommit_hook.py into the project
//	autocommit run              # Commit once (what the build calls)
//	autocommit run --dry-run    # Show what would be committed
//	autocommit watch            # Commit whenever .pio/build/*/firmware.bin changes
//	autocommit version          # Print version information
//
// After `autocommit install`, add the script to each environment in
// platformio.ini:
//
//	[env:esp32dev]
//	extra_scripts = post:autocommit_hook.py
//
// # Configuration Options
//
// Flags override AUTOCOMMIT_* environment variables, which override
// autocommit.yaml in the project root, which overrides a project .env file:
//
//	-d, --project-dir  Project root (env: AUTOCOMMIT_PROJECT_DIR, PROJECT_DIR)
//	-c, --config       Config file (default: <project-dir>/autocommit.yaml)
//	--version-file     Version file name (env: AUTOCOMMIT_VERSION_FILE)
//	--prefix           Commit message prefix (env: AUTOCOMMIT_PREFIX)
//	--strict           Exit non-zero when git fails (env: AUTOCOMMIT_STRICT)
//	--no-lock          Skip the per-project lock (env: AUTOCOMMIT_NO_LOCK)
//	-q, --quiet        Hide informational messages (env: AUTOCOMMIT_QUIET)
//	--debug            Write a JSON debug log (env: AUTOCOMMIT_DEBUG)
//	--log-file         Debug log path (env: AUTOCOMMIT_LOG_FILE)
//
// # Parallel Builds
//
// PlatformIO can build several environments at once. Runs for the same
// project take a lock file; a run that finds the lock held skips its
// commit, since the holder stages the same working tree.
package main
