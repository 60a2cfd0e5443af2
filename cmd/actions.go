package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayuer/onebot-bridge/internal/action"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the supported OneBot actions",
	RunE:  runActions,
}

var showSchemas bool

func init() {
	actionsCmd.Flags().BoolVarP(&showSchemas, "schema", "s", false, "Print each action's params JSON schema")
	rootCmd.AddCommand(actionsCmd)
}

func runActions(cmd *cobra.Command, args []string) error {
	actions := action.Default()
	for _, name := range actions.Names() {
		fmt.Println(name)
		if !showSchemas {
			continue
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, actions[name].Schema(), "  ", "  "); err != nil {
			return err
		}
		fmt.Printf("  %s\n", buf.String())
	}
	return nil
}
