package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/medibot/pkg/cliui"
	"github.com/papercomputeco/medibot/pkg/config"
)

const initLongDesc string = `Write a starter config.toml for a language model provider.

Without --config-dir the file goes to a .medibot/ directory in the current
working directory, which then takes precedence over ~/.medibot/.
An existing config.toml is left alone unless --force is given.

Presets: gemini, openai, anthropic, ollama.

Examples:
  medibot config init
  medibot config init --preset ollama
  medibot config init --preset openai --force`

const initShortDesc string = "Write a starter config.toml"

func newInitCmd() *cobra.Command {
	var (
		preset string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd.OutOrStdout(), preset, force, configDir)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "gemini",
		fmt.Sprintf("Provider preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func runInit(w io.Writer, preset string, force bool, configDir string) error {
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	if configDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		configDir = filepath.Join(cwd, ".medibot")
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !force {
		fmt.Fprintf(w, "Already initialized: %s\n", target)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Wrote %s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(target),
		cliui.DimStyle.Render(fmt.Sprintf("(preset %s)", strings.ToLower(preset))),
	)
	return nil
}
