package main

import (
	"encoding/json"

	"otpboard/api/internal/model"

	"github.com/spf13/cobra"
)

func newBoardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Provision and inspect boards",
	}

	var id, title string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty board",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeStore()

			if a.cfg.DatabaseURL == "" {
				a.log.Warn("memory store: the board lives only for this process")
			}

			b, err := st.CreateBoard(cmd.Context(), model.Board{BoardID: id, Title: title})
			if err != nil {
				return err
			}
			return writeJSON(cmd, b)
		},
	}
	create.Flags().StringVar(&id, "id", "", "board id")
	create.Flags().StringVar(&title, "title", "", "board title")
	_ = create.MarkFlagRequired("id")
	_ = create.MarkFlagRequired("title")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print all boards as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			boards, err := st.ListBoards(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, boards)
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
