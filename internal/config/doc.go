// Package config loads autocommit settings.
//
// Settings are layered, lowest first:
//
//  1. built-in defaults
//  2. <project-dir>/.env (never overrides variables already set)
//  3. <project-dir>/autocommit.yaml, or the file given with --config
//  4. AUTOCOMMIT_* environment variables
//  5. command-line flags the user set explicitly
//
// The project directory itself comes from --project-dir,
// AUTOCOMMIT_PROJECT_DIR, PlatformIO's PROJECT_DIR or the current
// directory, in that order.
//
// # Config File
//
//	version_file: firmware_version.txt
//	message_prefix: "Auto-commit: build"
//	artifacts:
//	  - .pio/build/esp32dev/firmware.bin
//	debounce: 500ms
//	strict: false
//	lock: true
//	debug: false
package config
