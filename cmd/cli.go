// Package cmd is the beatsense command line. It loads the configuration,
// applies flag overrides and wires the capture or replay source, the
// pipeline, the transports and the terminal UI together.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"beatsense/internal/audio"
	"beatsense/internal/config"
	"beatsense/internal/haptic"
	"beatsense/internal/haptic/driver"
	"beatsense/internal/log"
	"beatsense/internal/tui"
	"beatsense/pkg/build"
)

// options holds the flag values. Only flags the user actually set override
// the configuration file.
type options struct {
	configPath string
	device     int
	mode       string
	strategy   string
	intensity  float64
	driver     string
	tui        bool
	verbose    bool
	record     bool
	realtime   bool
	jsonOut    bool
}

// Execute runs the command line against args.
func Execute(ctx context.Context, args []string) error {
	rootCmd := newRootCmd(&options{})
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(opts *options) *cobra.Command {
	buildInfo := build.Current()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Long:          build.Description + ".\n\nWith no command, beatsense listens to the configured input device.",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg, opts)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "",
		"Configuration file. Defaults to ./"+config.DefaultFileName+" or the user config directory")
	flags.IntVarP(&opts.device, "device", "d", config.MinDeviceID,
		"Input device ID. Use the 'devices' command to see available devices")
	flags.StringVarP(&opts.mode, "mode", "m", "",
		"Output mode: visual, haptic or combined")
	flags.StringVarP(&opts.strategy, "strategy", "s", "",
		"Pattern strategy: mood or adaptive")
	flags.Float64VarP(&opts.intensity, "intensity", "i", haptic.DefaultIntensity,
		"Haptic intensity in [0, 1]")
	flags.StringVar(&opts.driver, "driver", "",
		"Haptic driver: log, gpio, browser or none")
	flags.BoolVarP(&opts.tui, "tui", "t", false,
		"Show the interactive terminal UI")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")
	rootCmd.Flags().BoolVarP(&opts.record, "record", "r", false,
		"Record the input stream to the recording directory")

	rootCmd.AddCommand(
		newReplayCmd(opts),
		newPatternsCmd(opts),
		newDevicesCmd(opts),
	)
	return rootCmd
}

func newReplayCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "replay <file>",
		Short: "Run a WAV or MP3 file through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), cfg, opts, args[0])
		},
	}
	c.Flags().BoolVar(&opts.realtime, "realtime", false,
		"Pace the replay at the file's sample rate (always on with --tui)")
	return c
}

func newPatternsCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "patterns",
		Short: "List the haptic pattern library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeCatalogue(cmd.OutOrStdout(), catalogueFor(cfg))
			}
			return writePatternTable(cmd.OutOrStdout())
		},
	}
	c.Flags().BoolVar(&opts.jsonOut, "json", false,
		"Print the catalogue as JSON, including device support")
	return c
}

func newDevicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Aliases: []string{"list"},
		Short:   "List available audio input devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.tui {
				return tui.StartDeviceListUI(cfg.Audio)
			}
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
}

// loadConfig reads the configuration file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if opts.verbose {
		log.SetLevel(log.LevelDebug)
	}
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	if opts.verbose {
		level = log.LevelDebug
	}
	log.SetLevel(level)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.InputDevice = opts.device
	}
	if changed("mode") {
		cfg.Haptic.Mode = opts.mode
	}
	if changed("strategy") {
		cfg.Haptic.Strategy = opts.strategy
	}
	if changed("intensity") {
		cfg.Haptic.Intensity = opts.intensity
	}
	if changed("driver") {
		cfg.Haptic.Driver = opts.driver
	}
	if changed("record") {
		cfg.Recording.Enabled = opts.record
	}
}

// catalogueFor probes the configured driver. A driver that cannot be opened
// yields the default catalogue.
func catalogueFor(cfg *config.Config) haptic.Catalogue {
	d, err := openDriver(cfg)
	if err != nil {
		log.Warnf("Haptic: %v", err)
		return haptic.DefaultCatalogue()
	}
	defer driver.Close(d)
	return haptic.CatalogueFor(d.Probe())
}

func writeCatalogue(w io.Writer, c haptic.Catalogue) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func writePatternTable(w io.Writer) error {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers("ID", "NAME", "DURATION", "PATTERN", "DESCRIPTION")

	for _, p := range haptic.Patterns() {
		t.Row(
			string(p.ID),
			p.Name,
			fmt.Sprintf("%dms", p.Duration()),
			fmt.Sprint(p.Pattern),
			p.Description,
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
