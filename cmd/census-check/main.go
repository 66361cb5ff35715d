// Command census-check inspects stored shift records and verifies the census chain.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"wisefido-census/internal/census"
	"wisefido-census/internal/common/database"
	"wisefido-census/internal/config"
	"wisefido-census/internal/domain"
	"wisefido-census/internal/repository"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dbName string
	cmd := &cobra.Command{
		Use:           "census-check",
		Short:         "Inspect shift census records stored in Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dbName, "db", "", "Database name (default: DB_NAME or census)")

	open := func(ctx context.Context) (*sql.DB, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if dbName != "" {
			cfg.Database.Database = dbName
		}
		return database.NewPostgresDB(ctx, &cfg.Database)
	}

	cmd.AddCommand(shiftsCmd(open), chainCmd(open))
	return cmd
}

type opener func(ctx context.Context) (*sql.DB, error)

func shiftsCmd(open opener) *cobra.Command {
	var ward, date string
	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "List the shift records of one ward and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			db, err := open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := repository.NewPostgresShiftRecordsRepository(db).ListShiftRecordsByWardDate(ctx, ward, date)
			if err != nil {
				return err
			}
			printShifts(cmd.OutOrStdout(), recs)
			return nil
		},
	}
	cmd.Flags().StringVar(&ward, "ward", "", "Ward id")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("ward")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func chainCmd(open opener) *cobra.Command {
	var ward, from, to string
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Verify the census chain of a ward over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				to = from
			}
			start, err := domain.ParseDate(from)
			if err != nil {
				return err
			}
			end, err := domain.ParseDate(to)
			if err != nil {
				return err
			}
			if end.Before(start) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			db, err := open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := repository.NewPostgresShiftRecordsRepository(db)
			var records []*domain.ShiftRecord
			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				recs, err := repo.ListShiftRecordsByWardDate(ctx, ward, d.Format(domain.DateLayout))
				if err != nil {
					return err
				}
				records = append(records, recs...)
			}

			issues := census.CheckChain(records)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s..%s: %d records, %d issues\n", ward, from, to, len(records), len(issues))
			for _, is := range issues {
				fmt.Fprintf(out, "  %-22s %-20s %s\n", is.Key, is.Kind, is.Detail)
			}
			if len(issues) > 0 {
				return fmt.Errorf("census chain has %d issues", len(issues))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ward, "ward", "", "Ward id")
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD, default --from)")
	_ = cmd.MarkFlagRequired("ward")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func printShifts(w io.Writer, recs []*domain.ShiftRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHIFT\tSTATUS\tPREVIOUS\tCENSUS\tSOURCE\tADMITS\tDEPARTS\tSTAFF\tEDITS\tVERSION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.Shift, r.Status, r.PreviousCensus, r.PatientCensus, r.CensusSource,
			r.Movements.Admissions(), r.Movements.Departures(), r.Staffing.Total(),
			len(r.EditHistory), r.Version)
	}
	_ = tw.Flush()
}
