// Package hook implements the post-build action.
//
// AfterBuild reads the firmware version, changes into the project root,
// stages every change and commits it as "<prefix> <version>". It never
// returns an error or panics: failures are logged and reported in the
// Result so the build that triggered the hook always succeeds.
package hook
