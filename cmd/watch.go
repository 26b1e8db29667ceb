package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchOutput string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitors and print every notification",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	notes := svc.Notifications()
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	for {
		select {
		case err := <-errc:
			return err
		case n, ok := <-notes:
			if !ok {
				return <-errc
			}
			if err := render(cmd.OutOrStdout(), watchOutput, n); err != nil {
				return err
			}
		}
	}
}
