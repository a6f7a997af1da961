package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qupload/internal/policy"
	"qupload/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file> [file...]",
		Short: "Validate files against the upload policy without uploading",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			gate := policy.NewGate(cfg.Policy)

			rejected := 0
			rows := make([][]string, 0, len(args))
			for _, arg := range args {
				file, err := fileRefFromPath(arg)
				if err != nil {
					rejected++
					rows = append(rows, []string{arg, "", "", "REJECTED", err.Error()})
					continue
				}
				if err := gate.Validate(file); err != nil {
					rejected++
					rows = append(rows, []string{file.Name, file.MIME, formatSize(file.Size), "REJECTED", services.Message(err)})
					continue
				}
				rows = append(rows, []string{file.Name, file.MIME, formatSize(file.Size), "OK", ""})
			}

			printTable(cmd.OutOrStdout(), []column{
				{name: "File"},
				{name: "Type"},
				{name: "Size", right: true},
				{name: "Result"},
				{name: "Reason"},
			}, rows)

			if rejected > 0 {
				return fmt.Errorf("%d of %d files would be rejected", rejected, len(args))
			}
			return nil
		},
	}
}
