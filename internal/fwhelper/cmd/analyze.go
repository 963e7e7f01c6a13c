package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"fwhelper/internal/analysis"
	"fwhelper/internal/config"
	"fwhelper/internal/detectors"
	"fwhelper/internal/fwhelper/log"
	"fwhelper/internal/fwimage"
	"fwhelper/internal/program"
	"fwhelper/internal/program/memdb"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Annotate helper call sites in a firmware image",
	Long: `Load a raw 8051 code image, disassemble from the reset and interrupt
vectors, then run every configured helper kind over its call sites.`,
	Example: `
# Default kinds from the configuration (dword-copy)
fwhelper analyze firmware.bin

# Skip a 0x200-byte header and emit a JSON report
fwhelper analyze --offset 0x200 --json firmware.bin
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Debug || cfg.LogLevel != "" {
			log.Logger().SetLevel(cfg.Level())
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		listing, _ := cmd.Flags().GetBool("listing")

		sess, err := openSession(args[0], cfg)
		if err != nil {
			return err
		}
		defer sess.Close()

		rep, err := sess.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, rep)
		}
		tty := out == os.Stdout && term.IsTerminal(os.Stdout.Fd())
		if err := writeSummary(out, rep, tty); err != nil {
			return err
		}
		if listing {
			writeListing(out, sess.db, tty)
		}
		return nil
	},
}

// session is a loaded image and the database built over it. The database
// aliases the image mapping, so both are released together.
type session struct {
	img *fwimage.Image
	db  *memdb.DB
}

func openSession(path string, cfg *config.Config) (*session, error) {
	img, err := fwimage.Open(path, imageOptions(cfg))
	if err != nil {
		return nil, err
	}
	if c := img.Container; c != nil {
		log.Logger().Info("Firmware container", "size", c.CodeSize, "magic", fmt.Sprintf("%#02x", c.Magic))
	}
	return &session{img: img, db: memdb.New(img.Blocks())}, nil
}

func (s *session) Close() error {
	return s.img.Close()
}

// Run disassembles from the vectors and configured entry points, then runs
// the pass over the configured kinds.
func (s *session) Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	lg := log.Logger().With("image", s.img.Path)

	entries := s.db.EntryPoints()
	for _, e := range cfg.EntryPoints {
		entries = append(entries, program.Code(e))
	}
	n, err := s.db.AutoAnalyze(entries)
	if err != nil {
		return nil, fmt.Errorf("auto-analysis: %w", err)
	}
	lg.Info("Disassembled", "instructions", n, "entries", len(entries))

	kinds, err := cfg.ParsedKinds()
	if err != nil {
		return nil, err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	helpers, err := detectors.ForKinds(kinds, layout)
	if err != nil {
		return nil, err
	}
	sigs, err := cfg.ParsedSignatures()
	if err != nil {
		return nil, err
	}

	opts := []analysis.PassOption{analysis.WithLogger(log.Logger())}
	for k, sig := range sigs {
		opts = append(opts, analysis.WithSignature(k, sig))
	}
	sums, err := analysis.NewPass(helpers, opts...).Run(ctx, s.db)
	if err != nil && ctx.Err() == nil {
		return nil, err
	}

	rep := &Report{
		Image:        s.img.Path,
		Base:         program.Code(uint32(s.img.Code.VA)).String(),
		CodeSize:     s.img.Code.Size,
		Instructions: n,
		Kinds:        sums,
	}
	if err != nil {
		rep.Cancelled = true
		lg.Warn("Analysis cancelled", "completed", len(sums))
	}
	return rep, nil
}

func init() {
	addImageFlags(analyzeCmd)
	analyzeCmd.Flags().BoolP("json", "j", false, "Output the run report as JSON")
	analyzeCmd.Flags().BoolP("listing", "l", false, "Print the annotated listing after the summary")
	analyzeCmd.Flags().StringP("kinds", "k", "", "Comma separated kinds to run (dword-copy, switch-case, u32-write)")
	analyzeCmd.Flags().String("switch-layout", "", "Switch table layout (keyed or overlaid)")
	rootCmd.AddCommand(analyzeCmd)
}
