package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachewarm/checkpoint"
	"github.com/sarchlab/cachewarm/datarecording"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [CHECKPOINT]",
	Short: "Summarize a checkpoint or list the lines recorded in a database.",
	Long: "`inspect checkpoint.json` prints the number of lines of each level " +
		"and the digest of a checkpoint. `inspect --db NAME` lists the lines " +
		"of a cache recorded by `replay --db NAME`.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dbName, _ := cmd.Flags().GetString("db")

		var err error

		switch {
		case dbName != "":
			err = inspectDB(cmd, dbName, os.Stdout)
		case len(args) == 1:
			err = inspectFile(args[0], os.Stdout)
		default:
			err = fmt.Errorf("either a checkpoint file or --db is required")
		}

		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	flags := inspectCmd.Flags()
	flags.String("db", "", "Database written by replay --db")
	flags.String("level", "L2", "Cache level to list: L1I, L1D, L2 or Shared")
	flags.Int("core", 0, "Core to list, ignored for the shared cache")
	flags.Int("limit", 64, "Maximum number of lines to list, 0 lists all")
}

type inspectReport struct {
	ID      string             `json:"id"`
	Digest  string             `json:"digest"`
	Summary checkpoint.Summary `json:"summary"`
}

func inspectFile(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cp, err := checkpoint.ReadJSON(f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(inspectReport{
		ID:      cp.ID,
		Digest:  fmt.Sprintf("%016x", cp.Digest()),
		Summary: cp.Summarize(),
	})
}

func inspectDB(cmd *cobra.Command, dbName string, w io.Writer) error {
	level, _ := cmd.Flags().GetString("level")
	core, _ := cmd.Flags().GetInt("core")
	limit, _ := cmd.Flags().GetInt("limit")

	if _, err := os.Stat(dbName + ".sqlite3"); err != nil {
		return err
	}

	reader := datarecording.NewReader(dbName)
	defer reader.Close()

	return listLines(reader, level, core, limit, w)
}

func listLines(
	reader datarecording.DataReader,
	level string,
	core, limit int,
	w io.Writer,
) error {
	reader.MapTable(checkpoint.LineTable, checkpoint.LineEntry{})

	params := datarecording.QueryParams{
		Where:   "Level = ? AND Core = ?",
		Args:    []any{level, core},
		OrderBy: "SetID, Position",
		Limit:   limit,
	}

	if level == "Shared" {
		params.Where = "Level = ?"
		params.Args = []any{level}
	}

	rows, total, err := reader.Query(
		context.Background(), checkpoint.LineTable, params)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SET\tWAY\tBLOCK\tSTATE\tI\tD")

	for _, row := range rows {
		l := row.(*checkpoint.LineEntry)
		fmt.Fprintf(tw, "%d\t%d\t0x%x\t%s\t%t\t%t\n",
			l.SetID, l.Position, uint64(l.BlockID), l.State,
			l.InInstructionCache, l.InDataCache)
	}

	err = tw.Flush()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%d of %d lines\n", len(rows), total)

	return err
}
