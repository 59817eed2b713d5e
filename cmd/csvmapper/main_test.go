// File: cmd/csvmapper/main_test.go
package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestRunShell(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Run("should run commands until exit", func(t *testing.T) {
		var out, errOut bytes.Buffer
		in := strings.NewReader("version\n\n  \nexit\nversion\n")

		require.NoError(t, runShell(context.Background(), in, &out, &errOut))

		assert.Equal(t, 1, strings.Count(out.String(), "csvmapper dev"), "lines after exit are not run")
		assert.Contains(t, out.String(), "Exiting csvmapper.")
		assert.Empty(t, errOut.String())
	})

	t.Run("should report errors and keep going", func(t *testing.T) {
		var out, errOut bytes.Buffer
		in := strings.NewReader("no-such-command\nversion\n")

		require.NoError(t, runShell(context.Background(), in, &out, &errOut))

		assert.Contains(t, errOut.String(), "unknown command")
		assert.Contains(t, out.String(), "csvmapper dev")
	})
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	var written string
	var code int
	osWriteFile = func(name string, data []byte, _ os.FileMode) error {
		written = name + ":" + string(data)
		return nil
	}
	osExit = func(c int) { code = c }

	func() {
		defer handlePanic()
		panic("boom")
	}()

	assert.Equal(t, 2, code)
	assert.True(t, strings.HasPrefix(written, panicLogFile+":panic: boom"))
}
