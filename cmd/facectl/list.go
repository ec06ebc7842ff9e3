package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/faceattend/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled employees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		employees, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(employees) == 0 {
			fmt.Println("No employees enrolled.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tDEPARTMENT\tCREATED")
		fmt.Fprintln(w, "--\t----\t-----\t----------\t-------")
		for _, e := range employees {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Email, e.Department, e.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
