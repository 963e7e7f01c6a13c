package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fwhelper/internal/analysis"
	"fwhelper/internal/fwimage"
	"fwhelper/internal/program/memdb"
	"fwhelper/internal/sigscan"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image> [hex-pattern]",
	Short: "List every match of a masked byte pattern",
	Long: `Scan the code region of an image for a byte pattern. The pattern is hex
bytes separated by spaces, ?? matches any byte. Without a pattern, --kind
selects the built-in signature of a helper kind.`,
	Example: `
# Where does the switch dispatcher live?
fwhelper scan firmware.bin "d0 83 d0 82 f8 e4 93"

# Same as above, using the built-in signature
fwhelper scan --kind switch-case firmware.bin
  `,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")

		var sig sigscan.Signature
		switch {
		case len(args) == 2:
			if sig, err = sigscan.Parse("pattern", args[1], 0); err != nil {
				return err
			}
		case kind != "":
			k, err := analysis.ParseKind(kind)
			if err != nil {
				return err
			}
			sig = analysis.DefaultSignatures[k]
		default:
			return fmt.Errorf("need a hex pattern or --kind")
		}

		return runScan(cmd.OutOrStdout(), args[0], sig, imageOptions(cfg))
	},
}

// runScan prints the CODE address of every match, one per line.
func runScan(w io.Writer, path string, sig sigscan.Signature, opts fwimage.Options) error {
	img, err := fwimage.Open(path, opts)
	if err != nil {
		return err
	}
	defer img.Close()

	for _, a := range analysis.LocateAll(memdb.New(img.Blocks()), sig) {
		fmt.Fprintln(w, a)
	}
	return nil
}

func init() {
	addImageFlags(scanCmd)
	scanCmd.Flags().String("kind", "", "Use the built-in signature of this kind ("+
		strings.Join(kindNames(), ", ")+")")
	rootCmd.AddCommand(scanCmd)
}

func kindNames() []string {
	out := make([]string, 0, len(analysis.Kinds))
	for _, k := range analysis.Kinds {
		out = append(out, string(k))
	}
	return out
}
