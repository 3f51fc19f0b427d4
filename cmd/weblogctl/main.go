package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viniciushammett/go-weblog-analyzer/internal/detector"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ingest"
	"github.com/viniciushammett/go-weblog-analyzer/internal/logger"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ml"
	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRoot(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRoot(out io.Writer) *cobra.Command {
	var modelDir, dbPath, logLevel string

	root := &cobra.Command{
		Use:          "weblogctl",
		Short:        "Web access-log anomaly scanner (offline CLI)",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&modelDir, "model-dir", env("MODEL_DIR", "models"), "directory holding the model artifacts")
	root.PersistentFlags().StringVar(&dbPath, "db", env("STORAGE_PATH", "data/weblog.db"), "scan history database")
	root.PersistentFlags().StringVar(&logLevel, "log-level", env("LOG_LEVEL", "warn"), "log level")

	// --- scan ---
	var save bool
	scanCmd := &cobra.Command{
		Use:   "scan FILE",
		Short: "Scan an access log (plain or .gz) and print the threat report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewWriter(logLevel, cmd.ErrOrStderr())
			det := detector.New(log, ml.NewScorer(ml.LoadResources(modelDir)), nil, nil)
			rep, res, err := det.ScanFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if save {
				st, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer st.Close()
				id, err := st.SaveScan(args[0], report.Summarize(res.Records), rep.Threats)
				if err != nil {
					return err
				}
				log.Info().Uint64("history_id", id).Msg("scan saved")
			}
			if res.Skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d unparseable line(s)\n", res.Skipped)
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	scanCmd.Flags().BoolVar(&save, "save", false, "store the result in the scan history")
	root.AddCommand(scanCmd)

	// --- stats ---
	root.AddCommand(&cobra.Command{
		Use:   "stats FILE",
		Short: "Print traffic statistics for an access log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ingest.ParseFile(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report.Summarize(res.Records))
		},
	})

	// --- export ---
	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved scan threats to CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			w := cmd.OutOrStdout()
			if outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := exportCSV(w, st)
			if err != nil {
				return err
			}
			if outPath != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d threats to %s\n", n, outPath)
			}
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "threats.csv", "CSV output file (- for stdout)")
	root.AddCommand(exportCmd)

	// --- version ---
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "weblogctl %s (%s, %s)\n", version, commit, date)
		},
	})
	return root
}

// exportCSV writes one row per saved threat, oldest scan first.
func exportCSV(w io.Writer, st *store.Store) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"history_id", "filename", "scan_date", "ip", "severity", "time", "reconstruction_error", "details"}); err != nil {
		return 0, err
	}
	n := 0
	var werr error
	err := st.EachScan(func(sc store.Scan) bool {
		for _, t := range sc.Threats {
			row := []string{
				strconv.FormatUint(sc.ID, 10), sc.Filename, sc.ScanDate.UTC().Format(time.RFC3339),
				t.IP, t.Severity, t.Time, strconv.FormatFloat(t.ReconstructionError, 'f', -1, 64), t.Details,
			}
			if werr = cw.Write(row); werr != nil {
				return false
			}
			n++
		}
		return true
	})
	if err == nil {
		err = werr
	}
	if err != nil {
		return n, err
	}
	cw.Flush()
	return n, cw.Error()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
