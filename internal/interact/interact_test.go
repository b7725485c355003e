package interact

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultInteractor(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input string
		want  bool
	}{
		"Yes":           {input: "yes\n", want: true},
		"ShortYes":      {input: "y\n", want: true},
		"UpperYes":      {input: "  Y\n", want: true},
		"No":            {input: "no\n", want: false},
		"Empty":         {input: "\n", want: false},
		"EOF":           {input: "", want: false},
		"YesWithoutEOL": {input: "yes", want: true},
		"SomethingElse": {input: "maybe\n", want: false},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			output := &bytes.Buffer{}
			interactor := &DefaultInteractor{
				Reader: bytes.NewBufferString(tc.input),
				Writer: output,
			}

			assert.Equal(t, tc.want, interactor.PromptYesNo("Overwrite hook script?"))
			assert.Equal(t, "Overwrite hook script? (y/n): ", output.String())
		})
	}
}

func TestNewDefaultInteractor(t *testing.T) {
	interactor := NewDefaultInteractor()
	assert.NotNil(t, interactor.Reader)
	assert.NotNil(t, interactor.Writer)
}

func TestNonInteractiveInteractor(t *testing.T) {
	var interactor UserInteractor = NewNonInteractiveInteractor()
	assert.False(t, interactor.PromptYesNo("Any prompt should return false"))
}
