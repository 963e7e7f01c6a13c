package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"fwhelper/internal/config"
	"fwhelper/internal/fwhelper/log"
	"fwhelper/internal/fwimage"
)

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a JSON configuration file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
}

var rootCmd = &cobra.Command{
	Use:   "fwhelper",
	Short: "Annotate helper calls in ASM236x 8051 firmware",
	Long: `fwhelper finds the compiler helper routines of an ASM236x 8051 firmware
image (dword copy, switch dispatch, 32-bit external memory write) and annotates
every call site: inline literals become typed data, switch tables get parsed
and their targets disassembled, and external memory writes get references.`,
	Example: `
# Annotate dword-copy call sites and print a summary
fwhelper analyze firmware.bin

# Run every helper and dump the annotated listing
fwhelper analyze --kinds dword-copy,switch-case,u32-write --listing firmware.bin

# Find a byte pattern in the code region
fwhelper scan firmware.bin "d0 83 d0 82 f8 e4 93"
  `,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		logFile, _ := cmd.Flags().GetString("log-file")
		log.Setup(logFile, debug)
	},
}

// loadConfig reads --config and applies the per-command flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("kinds") {
		v, _ := flags.GetString("kinds")
		cfg.Kinds = config.SplitList(v)
	}
	if flags.Changed("base") {
		v, _ := flags.GetString("base")
		if cfg.Base, err = config.ParseAddr(v); err != nil {
			return nil, fmt.Errorf("--base: %w", err)
		}
	}
	if flags.Changed("offset") {
		cfg.Offset, _ = flags.GetUint64("offset")
	}
	if flags.Changed("code-size") {
		cfg.CodeSize, _ = flags.GetUint64("code-size")
	}
	if flags.Changed("container") {
		cfg.Container, _ = flags.GetBool("container")
	}
	if flags.Changed("switch-layout") {
		cfg.SwitchLayout, _ = flags.GetString("switch-layout")
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addImageFlags registers the flags that describe where the code lives.
func addImageFlags(cmd *cobra.Command) {
	cmd.Flags().String("base", "", "CODE address of the first code byte (e.g. 0x0000)")
	cmd.Flags().Uint64("offset", 0, "File offset of the first code byte")
	cmd.Flags().Uint64("code-size", 0, "Number of code bytes (0 for the rest of the file)")
	cmd.Flags().Bool("container", false, "Parse the vendor firmware container for offset and size")
}

func imageOptions(cfg *config.Config) fwimage.Options {
	return fwimage.Options{
		Base:      cfg.Base,
		Offset:    cfg.Offset,
		CodeSize:  cfg.CodeSize,
		Container: cfg.Container,
	}
}

func Execute() {
	// fang renders errors and help as markdown, which only makes sense on
	// a terminal.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
