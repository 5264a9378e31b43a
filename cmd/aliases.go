package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/refdata"
	"github.com/sells-group/quote-cli/internal/store"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Manage database city aliases",
	Long:  "City aliases map free-text spellings to the city names used in the reference workbook. Stored aliases override the CITY_ALIASES sheet.",
}

func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("aliases"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

// -- aliases add --

var aliasesAddCmd = &cobra.Command{
	Use:   "add <country> <from> <to>",
	Short: "Add or replace an alias",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a := model.CityAlias{CountryCode: args[0], From: args[1], To: args[2]}
		if err := st.UpsertAlias(ctx, a); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %s -> %s\n", strings.ToUpper(a.CountryCode), a.From, a.To)
		return nil
	},
}

// -- aliases list --

var aliasesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored aliases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		aliases, err := st.ListAliases(ctx)
		if err != nil {
			return eris.Wrap(err, "aliases list")
		}
		country, _ := cmd.Flags().GetString("country")
		formatAliases(os.Stdout, filterAliases(aliases, country))
		return nil
	},
}

// -- aliases delete --

var aliasesDeleteCmd = &cobra.Command{
	Use:   "delete <country> <from>",
	Short: "Delete an alias",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ok, err := st.DeleteAlias(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("aliases: no alias %s/%s", strings.ToUpper(args[0]), args[1])
		}
		fmt.Fprintf(os.Stdout, "Deleted %s/%s\n", strings.ToUpper(args[0]), args[1])
		return nil
	},
}

// -- aliases import --

var aliasesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import aliases from a CSV file or a workbook CITY_ALIASES sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		aliases, err := readAliases(ctx, args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportAliases(ctx, aliases)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d aliases from %s\n", n, args[0])
		return nil
	},
}

// readAliases reads "Country Code, From City, To City" rows.
func readAliases(ctx context.Context, path string) ([]model.CityAlias, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, oerr := os.Open(path)
		if oerr != nil {
			return nil, eris.Wrapf(oerr, "aliases: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err = fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
	} else {
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: refdata.SheetCityAliases})
	}
	if err != nil {
		return nil, eris.Wrap(err, "aliases: read import file")
	}
	return refdata.BuildAliasTable(refdata.NewSheet(refdata.SheetCityAliases, rows), nil).All(), nil
}

func filterAliases(aliases []model.CityAlias, country string) []model.CityAlias {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return aliases
	}
	var out []model.CityAlias
	for _, a := range aliases {
		if a.CountryCode == country {
			out = append(out, a)
		}
	}
	return out
}

func formatAliases(w io.Writer, aliases []model.CityAlias) {
	if len(aliases) == 0 {
		fmt.Fprintln(w, "No aliases found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tFROM\tTO")
	for _, a := range aliases {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.CountryCode, a.From, a.To)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	aliasesListCmd.Flags().String("country", "", "only aliases for this country code")

	aliasesCmd.AddCommand(aliasesAddCmd, aliasesListCmd, aliasesDeleteCmd, aliasesImportCmd)
	rootCmd.AddCommand(aliasesCmd)
}
