package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestError(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Error(errors.New("boom"), "Loading registry")
	assert.Empty(t, out.String())
	assert.Equal(t, "[ERROR] Loading registry: boom\n", errOut.String())
}

func TestError_WithoutContext(t *testing.T) {
	p, _, errOut := newTestPresenter()

	p.Error(errors.New("boom"), "")
	assert.Equal(t, "[ERROR] boom\n", errOut.String())
}

func TestError_NilIsSilent(t *testing.T) {
	p, _, errOut := newTestPresenter()

	p.Error(nil, "context")
	assert.Empty(t, errOut.String())
}

func TestMessages(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Success("done")
	p.Warning("careful")
	p.Info("plain")

	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, out.String(), "⚠ careful")
	assert.Contains(t, out.String(), "plain\n")
}

func TestSection(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Section("Plan")
	assert.Contains(t, out.String(), "Plan\n----\n")
}

func TestQuietMode(t *testing.T) {
	p, out, errOut := newTestPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("plain")
	p.Section("Plan")
	p.Separator()
	assert.Empty(t, out.String(), "quiet mode suppresses normal output")

	p.Error(errors.New("boom"), "")
	assert.NotEmpty(t, errOut.String(), "errors still shown in quiet mode")
}
