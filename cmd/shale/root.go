package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"shale/config"
	shaledb "shale/db"
	"shale/execution"
	"shale/tuple"
	"shale/types"
)

var (
	rootCmd = &cobra.Command{
		Use:           "shale",
		Short:         "Shale storage engine loader utility",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configFile string
	dataDir    string
	schemaFile string
	verbose    bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "hcl config file")
	flags.StringVarP(&dataDir, "data", "d", "", "data directory (overrides config)")
	flags.StringVarP(&schemaFile, "schema", "s", "schema.txt", "catalog schema file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pflag.CommandLine.AddFlagSet(flags)

	rootCmd.AddCommand(loadCmd, scanCmd, insertCmd, deleteCmd, statsCmd)
}

func openDatabase() (*shaledb.Database, error) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	opts := config.DefaultOptions()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}
	if dataDir != "" {
		opts.DataDir = dataDir
	}

	db, err := shaledb.Open(opts)
	if err != nil {
		return nil, err
	}
	if _, err := db.LoadSchema(schemaFile); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Create or reopen the tables declared in the schema file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		for _, id := range db.Catalog().TableIDs() {
			name, _ := db.Catalog().TableName(id)
			desc, _ := db.Catalog().TupleDesc(id)
			fmt.Printf("%s: %s\n", name, desc)
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <table>",
	Short: "Print every tuple of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		tableID, err := db.Catalog().TableID(args[0])
		if err != nil {
			return err
		}

		tx := db.Begin()
		scan, err := execution.NewSeqScan(db.ExecContext(), tx.ID(), tableID, "")
		if err != nil {
			return err
		}
		if err := scan.Open(); err != nil {
			return err
		}
		defer scan.Close()

		if err := renderRows(scan); err != nil {
			tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <table> <value>...",
	Short: "Insert one row, values in schema order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		tableID, err := db.Catalog().TableID(args[0])
		if err != nil {
			return err
		}
		desc, err := db.Catalog().TupleDesc(tableID)
		if err != nil {
			return err
		}
		if len(args)-1 != desc.NumFields() {
			return fmt.Errorf("table %s has %d columns, got %d values", args[0], desc.NumFields(), len(args)-1)
		}

		t := tuple.NewTuple(desc)
		for i, raw := range args[1:] {
			ft, _ := desc.TypeAt(i)
			var f types.Field
			switch ft {
			case types.IntType:
				v, err := strconv.ParseInt(raw, 10, 32)
				if err != nil {
					return fmt.Errorf("column %d: %w", i, err)
				}
				f = types.NewIntField(int32(v))
			case types.StringType:
				f = types.NewStringField(raw)
			}
			if err := t.SetField(i, f); err != nil {
				return err
			}
		}

		tx := db.Begin()
		if err := db.Pool().InsertTuple(tx.ID(), tableID, t); err != nil {
			tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> [column] [value]",
	Short: "Delete rows, all of them or those where column = value",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			return fmt.Errorf("a column filter needs both a column and a value")
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		tableID, err := db.Catalog().TableID(args[0])
		if err != nil {
			return err
		}

		tx := db.Begin()
		var source execution.OpIterator
		scan, err := execution.NewSeqScan(db.ExecContext(), tx.ID(), tableID, "")
		if err != nil {
			return err
		}
		source = scan

		if len(args) == 3 {
			desc, err := db.Catalog().TupleDesc(tableID)
			if err != nil {
				return err
			}
			idx, err := desc.IndexOf(args[1])
			if err != nil {
				return err
			}
			ft, _ := desc.TypeAt(idx)
			var operand types.Field
			switch ft {
			case types.IntType:
				v, err := strconv.ParseInt(args[2], 10, 32)
				if err != nil {
					return err
				}
				operand = types.NewIntField(int32(v))
			case types.StringType:
				operand = types.NewStringField(args[2])
			}
			source = execution.NewFilter(execution.NewPredicate(idx, types.Equals, operand), source)
		}

		del := execution.NewDelete(db.ExecContext(), tx.ID(), source)
		if err := del.Open(); err != nil {
			tx.Abort()
			return err
		}
		out, err := del.Next()
		if err != nil {
			del.Close()
			tx.Abort()
			return err
		}
		del.Close()

		if err := tx.Commit(); err != nil {
			return err
		}
		f, _ := out.FieldAt(0)
		fmt.Printf("deleted %s rows\n", f)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [table]",
	Short: "Show table statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Stats().Compute(); err != nil {
			return err
		}

		names := make([]string, 0)
		if len(args) == 1 {
			names = append(names, args[0])
		} else {
			for _, id := range db.Catalog().TableIDs() {
				n, _ := db.Catalog().TableName(id)
				names = append(names, n)
			}
		}

		w := tablewriter.NewWriter(os.Stdout)
		w.SetHeader([]string{"table", "tuples", "scan cost"})
		for _, name := range names {
			ts, err := db.Stats().Get(name)
			if err != nil {
				return err
			}
			w.Append([]string{
				name,
				strconv.Itoa(ts.TotalTuples()),
				strconv.FormatFloat(ts.EstimateScanCost(), 'f', 0, 64),
			})
		}
		w.Render()
		return nil
	},
}

func renderRows(it execution.OpIterator) error {
	desc := it.TupleDesc()
	header := make([]string, desc.NumFields())
	for i := range header {
		n, _ := desc.NameAt(i)
		if n == "" {
			n = fmt.Sprintf("f%d", i)
		}
		header[i] = n
	}

	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader(header)
	for {
		has, err := it.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := it.Next()
		if err != nil {
			return err
		}
		row := make([]string, desc.NumFields())
		for i := range row {
			f, _ := t.FieldAt(i)
			row[i] = f.String()
		}
		w.Append(row)
	}
	w.Render()
	return nil
}
