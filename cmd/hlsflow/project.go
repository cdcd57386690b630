package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/report"
	"github.com/ReconfigureIO/hlsflow/toolchain"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	f := &modelFlags{}
	cmd := &cobra.Command{
		Use:   "config MODEL",
		Short: "Print the derived HLS configuration of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := f.configure(args[0])
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
	f.register(cmd)
	return cmd
}

func convertCmd() *cobra.Command {
	f := &modelFlags{}
	var compile bool
	cmd := &cobra.Command{
		Use:   "convert MODEL",
		Short: "Write the HLS project of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cfg, err := f.configure(args[0])
			if err != nil {
				return err
			}
			opts, err := f.convertOptions()
			if err != nil {
				return err
			}
			p, err := converter.Convert(m, cfg, opts)
			if err != nil {
				return err
			}
			defer p.Close()
			if compile {
				ctx, cancel := signalContext()
				defer cancel()
				tc := converter.Toolchain{Runner: toolchain.ExecRunner{}, CXX: conf.Toolchain.CXX}
				if err := p.Compile(ctx, tc); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Dir)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&compile, "compile", false, "compile the project after writing it")
	return cmd
}

func synthCmd() *cobra.Command {
	f := &synthFlags{}
	cmd := &cobra.Command{
		Use:   "synth DIR",
		Short: "Synthesize a converted project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := converter.Open(args[0])
			if err != nil {
				return err
			}
			defer p.Close()
			s, err := synthesizer(conf)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			if _, err := s.Synthesize(ctx, p, f.flags); err != nil {
				return err
			}
			path, err := report.Find(p.Dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func reportCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "report DIR",
		Short: "Print the utilisation report of a synthesized project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := report.Load(args[0])
			if err != nil {
				return err
			}
			if raw {
				_, err = r.WriteTo(cmd.OutOrStdout())
				return err
			}
			printSummary(cmd.OutOrStdout(), report.Summarise(r))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the report as read")
	return cmd
}

func printSummary(w io.Writer, s models.Report) {
	fmt.Fprintf(w, "%s on %s\n", s.ModuleName, s.PartName)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tUSED\tAVAILABLE\tUTIL%")
	rows := []struct {
		name string
		d    models.PartDetail
	}{
		{report.CategoryLUT, group(s.LutSummary)},
		{report.CategoryRegister, group(s.RegSummary)},
		{report.CategoryBlockRAM, group(s.BlockRamSummary)},
		{report.CategoryURAM, s.UltraRamSummary},
		{report.CategoryDSP, s.DspBlockSummary},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", row.name, row.d.Used, row.d.Available, row.d.Utilisation)
	}
	tw.Flush()
}

func group(g models.GroupSummary) models.PartDetail {
	return models.PartDetail{Used: g.Used, Available: g.Available, Utilisation: g.Utilisation}
}
