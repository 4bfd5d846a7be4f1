package cmdutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/config"
)

func TestCobraCommand(t *testing.T) {
	t.Run("creates command with correct properties", func(t *testing.T) {
		businessFunc := func(ctx context.Context, cfg *config.Config) error {
			return nil
		}

		wrapperFunc := func(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
			return fn(ctx, cfg)
		}

		cmd := CobraCommand("test-cmd", "short desc", "long description", "v1.0.0", wrapperFunc, businessFunc)

		assert.Equal(t, "test-cmd", cmd.Use)
		assert.Equal(t, "short desc", cmd.Short)
		assert.Equal(t, "long description", cmd.Long)
		assert.NotNil(t, cmd.RunE)
	})

	t.Run("RunE returns error when config loading fails", func(t *testing.T) {
		called := false
		businessFunc := func(ctx context.Context, cfg *config.Config) error {
			called = true
			return nil
		}

		wrapperFunc := func(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
			return errors.New("wrapper error")
		}

		cmd := CobraCommand("test", "short", "long", "v1.0.0", wrapperFunc, businessFunc)
		cmd.SetArgs([]string{})

		// no config file exists next to the test
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading config")
		assert.False(t, called)
	})
}

func TestClientCommand(t *testing.T) {
	t.Run("creates command with correct properties", func(t *testing.T) {
		cmd := ClientCommand("status", "Show the session", "v1.0.0", cobra.NoArgs,
			func(context.Context, *cobra.Command, *business.Client, []string) error { return nil })

		assert.Equal(t, "status", cmd.Use)
		assert.Equal(t, "Show the session", cmd.Short)
		assert.NotNil(t, cmd.Args)
	})

	t.Run("RunE returns error when config loading fails", func(t *testing.T) {
		called := false
		cmd := ClientCommand("status", "Show the session", "v1.0.0", cobra.NoArgs,
			func(context.Context, *cobra.Command, *business.Client, []string) error {
				called = true
				return nil
			})
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading config")
		assert.False(t, called)
	})
}

type draft struct {
	BusinessName string `yaml:"business_name"`
	PlaceID      string `yaml:"place_id"`
	Latitude     float64
}

func TestReadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	require.NoError(t, os.WriteFile(path, []byte("business_name: Shah Estates\nplace_id: ChIJ-surat\n"), 0o600))

	var fromFile draft
	require.NoError(t, ReadYAML(path, nil, &fromFile))
	assert.Equal(t, draft{BusinessName: "Shah Estates", PlaceID: "ChIJ-surat"}, fromFile)

	var fromStdin draft
	require.NoError(t, ReadYAML("-", strings.NewReader("business_name: From Stdin\n"), &fromStdin))
	assert.Equal(t, "From Stdin", fromStdin.BusinessName)

	err := ReadYAML(filepath.Join(t.TempDir(), "missing.yaml"), nil, &fromFile)
	assert.ErrorContains(t, err, "reading")

	require.NoError(t, os.WriteFile(path, []byte("business_name: [unterminated\n"), 0o600))
	err = ReadYAML(path, nil, &fromFile)
	assert.ErrorContains(t, err, "decoding")
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, draft{BusinessName: "Shah Estates", PlaceID: "ChIJ-surat"}))

	var back draft
	require.NoError(t, ReadYAML("-", &buf, &back))
	assert.Equal(t, "Shah Estates", back.BusinessName)
	assert.Equal(t, "ChIJ-surat", back.PlaceID)
}

func TestHealthStatusTimeout(t *testing.T) {
	t.Run("has correct value", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, healthStatusTimeout)
	})
}

func ExampleCobraCommand() {
	businessFunc := func(ctx context.Context, cfg *config.Config) error {
		fmt.Println("Running business logic")
		return nil
	}

	wrapperFunc := func(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
		fmt.Println("Wrapper function called")
		return fn(ctx, cfg)
	}

	cmd := CobraCommand(
		"example",
		"Example command",
		"This is an example of how to use CobraCommand",
		"v1.0.0",
		wrapperFunc,
		businessFunc,
	)

	fmt.Printf("Command use: %s\n", cmd.Use)
	// Output: Command use: example
}
