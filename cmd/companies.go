package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/funding-harvester/internal/ingest"
	"github.com/sells-group/funding-harvester/internal/model"
)

var (
	companiesCountry string
	companiesSearch  string
	companiesLimit   int
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List resolved companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, ingest.Options{})
		if err != nil {
			return err
		}
		defer env.Close()

		var companies []model.Company
		if companiesSearch != "" {
			companies, err = env.Store.SearchCompaniesByName(ctx, companiesSearch, companiesLimit)
		} else {
			var country *string
			if companiesCountry != "" {
				country = &companiesCountry
			}
			companies, err = env.Store.ListCompanies(ctx, country)
			if err == nil && companiesLimit > 0 && len(companies) > companiesLimit {
				companies = companies[:companiesLimit]
			}
		}
		if err != nil {
			return err
		}

		if len(companies) == 0 {
			fmt.Fprintln(os.Stderr, "No companies found.")
			return nil
		}

		formatCompaniesList(os.Stdout, companies)
		return nil
	},
}

func init() {
	companiesCmd.Flags().StringVar(&companiesCountry, "country", "", "filter by country code")
	companiesCmd.Flags().StringVar(&companiesSearch, "search", "", "filter by name substring")
	companiesCmd.Flags().IntVar(&companiesLimit, "limit", 100, "max number of companies to display")
	rootCmd.AddCommand(companiesCmd)
}

// formatCompaniesList writes a tabular list of companies to out.
func formatCompaniesList(out io.Writer, companies []model.Company) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCOUNTRY\tDOMAIN\tFIRST_SEEN\tLAST_SEEN")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t------\t----------\t---------")

	for _, c := range companies {
		name := c.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			name,
			strOrDash(c.Country),
			strOrDash(c.Domain),
			strOrDash(c.FirstSeen),
			strOrDash(c.LastSeen),
		)
	}
	_ = w.Flush()
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
