// Package platformio registers autocommit as a PlatformIO post-build action.
//
// PlatformIO runs extra scripts inside its SCons environment. The generated
// script calls env.AddPostAction on the firmware binary so that every
// successful build invokes `autocommit run` for the project.
package platformio

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/renameio/v2"

	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/interact"
)

const (
	// DefaultScriptName is the extra script written into the project root.
	DefaultScriptName = "autocommit_hook.py"

	// IniFileName is PlatformIO's project configuration file.
	IniFileName = "platformio.ini"

	// ArtifactTarget is the SCons target the post action is attached to.
	ArtifactTarget = "$BUILD_DIR/${PROGNAME}.bin"
)

var scriptTemplate = template.Must(template.New("hook").Parse(`# Generated by autocommit {{ .Version }}. Do not edit; rerun "autocommit install".
# Commits the working tree after every successful firmware build.
Import("env")

try:
    env.AddPostAction(
        {{ printf "%q" .Target }},
        {{ printf "%q" .Command }},
    )
except Exception as e:
    print("[autocommit] Could not register post-build hook: %s" % e)
`))

// InstallOptions configures Install.
type InstallOptions struct {
	// ProjectDir is the PlatformIO project root.
	ProjectDir string

	// ScriptName is the extra script file name (default autocommit_hook.py).
	ScriptName string

	// Binary is the autocommit executable the script invokes.
	Binary string

	// RunArgs are appended to `run --project-dir "$PROJECT_DIR"`.
	RunArgs []string

	// Version is stamped into the script header.
	Version string

	// Force overwrites a modified script without asking.
	Force bool

	// Interactor is asked before overwriting a modified script.
	// nil behaves like a non-interactive session.
	Interactor interact.UserInteractor
}

// Installation reports what Install did.
type Installation struct {
	ScriptPath string
	// Written is false when the script on disk was already up to date.
	Written bool
	// IniConfigured is true when platformio.ini already references the script.
	IniConfigured bool
	// IniLine is what has to be added to each [env] section otherwise.
	IniLine string
}

// Install writes the post-build extra script into the project.
// Errors wrap ErrHookRegistration.
func Install(opts InstallOptions) (*Installation, error) {
	if opts.ScriptName == "" {
		opts.ScriptName = DefaultScriptName
	}
	if opts.Binary == "" {
		opts.Binary = "autocommit"
	}
	if opts.Interactor == nil {
		opts.Interactor = interact.NewNonInteractiveInteractor()
	}

	iniPath := filepath.Join(opts.ProjectDir, IniFileName)
	if _, err := os.Stat(iniPath); err != nil {
		return nil, acErrors.Wrapf(acErrors.ErrHookRegistration, "%s not found in %s: %v", IniFileName, opts.ProjectDir, err)
	}

	script, err := RenderScript(opts)
	if err != nil {
		return nil, acErrors.Wrap(acErrors.ErrHookRegistration, err.Error())
	}

	inst := &Installation{
		ScriptPath: filepath.Join(opts.ProjectDir, opts.ScriptName),
		IniLine:    "extra_scripts = post:" + opts.ScriptName,
	}

	existing, err := os.ReadFile(inst.ScriptPath)
	switch {
	case err == nil && bytes.Equal(existing, script):
		// up to date
	case err == nil && !opts.Force && !opts.Interactor.PromptYesNo(inst.ScriptPath+" exists and differs. Overwrite it?"):
		return nil, acErrors.Wrapf(acErrors.ErrHookRegistration, "%s already exists (use --force to overwrite)", inst.ScriptPath)
	case err != nil && !os.IsNotExist(err):
		return nil, acErrors.Wrapf(acErrors.ErrHookRegistration, "cannot read %s: %v", inst.ScriptPath, err)
	default:
		if err := renameio.WriteFile(inst.ScriptPath, script, 0o644); err != nil {
			return nil, acErrors.Wrapf(acErrors.ErrHookRegistration, "cannot write %s: %v", inst.ScriptPath, err)
		}
		inst.Written = true
	}

	configured, err := IniReferencesScript(iniPath, opts.ScriptName)
	if err != nil {
		return nil, acErrors.Wrap(acErrors.ErrHookRegistration, err.Error())
	}
	inst.IniConfigured = configured

	return inst, nil
}

// RenderScript returns the extra script contents for opts.
func RenderScript(opts InstallOptions) ([]byte, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "autocommit"
	}

	command := []string{shellQuote(binary), "run", "--project-dir", `"$PROJECT_DIR"`}
	command = append(command, opts.RunArgs...)

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	var buf bytes.Buffer
	err := scriptTemplate.Execute(&buf, struct {
		Version string
		Target  string
		Command string
	}{
		Version: version,
		Target:  ArtifactTarget,
		Command: strings.Join(command, " "),
	})
	return buf.Bytes(), err
}

// IniReferencesScript reports whether any extra_scripts entry in the ini
// file names scriptName. Multi-line values (indented continuation lines)
// are followed.
func IniReferencesScript(iniPath, scriptName string) (bool, error) {
	f, err := os.Open(iniPath)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	inExtraScripts := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		continuation := raw != strings.TrimLeft(raw, " \t")
		if !continuation {
			inExtraScripts = false
			key, value, found := strings.Cut(line, "=")
			if !found || strings.TrimSpace(key) != "extra_scripts" {
				continue
			}
			inExtraScripts = true
			line = value
		} else if !inExtraScripts {
			continue
		}

		for _, entry := range strings.Split(line, ",") {
			entry = strings.TrimSpace(entry)
			entry = strings.TrimPrefix(entry, "post:")
			entry = strings.TrimPrefix(entry, "pre:")
			if filepath.Base(entry) == scriptName {
				return true, nil
			}
		}
	}

	return false, scanner.Err()
}

// shellQuote wraps s in double quotes when it contains characters the shell
// would split on.
func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"\\$`") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`").Replace(s) + `"`
}
