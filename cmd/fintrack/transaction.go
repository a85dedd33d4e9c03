package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
)

var txFlags struct {
	amount      string
	kind        string
	template    string
	unpaid      bool
	priority    string
	description string
}

var txCmd = &cobra.Command{
	Use:     "tx",
	Aliases: []string{"transaction"},
	Short:   "Record realized transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a transaction, optionally against a template",
	Example: `  fintrack tx add --amount 899.50 --template <id> --date 2025-03-02
  fintrack tx add --amount 42 --priority wants --description groceries`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			amount, err := core.ParseMoney(txFlags.amount)
			if err != nil {
				return err
			}
			date, err := referenceDate()
			if err != nil {
				return err
			}

			priority := core.BucketType(txFlags.priority)
			if txFlags.template != "" && priority == "" {
				t, err := app.Store.GetTemplate(ctx, txFlags.template)
				if err != nil {
					return err
				}
				priority = t.Priority()
			}

			tx, err := app.Transactions.Record(ctx, core.RealizedTransaction{
				OwnerID:             flagOwner,
				RecurringTemplateID: txFlags.template,
				Type:                core.TransactionType(txFlags.kind),
				Amount:              amount,
				Date:                date,
				IsPaid:              !txFlags.unpaid,
				Description:         txFlags.description,
			}, priority)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Recorded %s %s on %s (%s)\n", tx.Type, tx.Amount, tx.Date, tx.ID)
			return nil
		})
	},
}

func init() {
	f := txAddCmd.Flags()
	f.StringVar(&txFlags.amount, "amount", "", "Amount, e.g. 12.50")
	f.StringVar(&txFlags.kind, "type", string(core.Expense), "income or expense")
	f.StringVar(&txFlags.template, "template", "", "Template this transaction settles")
	f.BoolVar(&txFlags.unpaid, "unpaid", false, "Record an expense that is not paid yet")
	f.StringVar(&txFlags.priority, "priority", "", "Bucket for the expense: needs, wants or savings")
	f.StringVar(&txFlags.description, "description", "", "Free text")
	_ = txAddCmd.MarkFlagRequired("amount")

	txCmd.AddCommand(txAddCmd)
	rootCmd.AddCommand(txCmd)
}
