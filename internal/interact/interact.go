package interact

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// UserInteractor defines an interface for interacting with the user
type UserInteractor interface {
	// PromptYesNo asks the user a yes/no question and returns their response
	PromptYesNo(question string) bool
}

// DefaultInteractor reads answers from Reader and writes prompts to Writer
type DefaultInteractor struct {
	Reader io.Reader
	Writer io.Writer
}

// NewDefaultInteractor creates a DefaultInteractor bound to stdin and stdout
func NewDefaultInteractor() *DefaultInteractor {
	return &DefaultInteractor{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// PromptYesNo asks the user a yes/no question. Anything starting with "y"
// is a yes; read errors and EOF count as no.
func (i *DefaultInteractor) PromptYesNo(question string) bool {
	_, _ = fmt.Fprintf(i.Writer, "%s (y/n): ", question)

	answer, err := bufio.NewReader(i.Reader).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	answer = strings.TrimSpace(answer)
	return strings.HasPrefix(strings.ToLower(answer), "y")
}

// NonInteractiveInteractor always returns default values without prompting
type NonInteractiveInteractor struct{}

// NewNonInteractiveInteractor creates a new NonInteractiveInteractor
func NewNonInteractiveInteractor() *NonInteractiveInteractor {
	return &NonInteractiveInteractor{}
}

// PromptYesNo always returns false without prompting
func (i *NonInteractiveInteractor) PromptYesNo(string) bool {
	return false
}
