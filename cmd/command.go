package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agrolink/core/command"
)

var (
	expectedFlag    string
	skipOnlineCheck bool
	outcomeTimeout  time.Duration
)

var commandCmd = &cobra.Command{
	Use:   "command <device> <method> <params>",
	Short: "Send a command and wait for its confirmation",
	Long: `Send a command to a device and wait for its outcome.

Params are parsed as JSON when possible (1, true, {"dir":2}) and sent as a
plain string otherwise. The command exits with an error unless the device
confirms the new state.`,
	Args: cobra.ExactArgs(3),
	RunE: runCommand,
}

func init() {
	commandCmd.Flags().StringVar(&expectedFlag, "expected", "", "value the device must report, as JSON (defaults to params)")
	commandCmd.Flags().BoolVar(&skipOnlineCheck, "skip-online-check", false, "send even when the device reports offline")
	commandCmd.Flags().DurationVar(&outcomeTimeout, "wait", 30*time.Second, "maximum time to wait for the outcome")
	rootCmd.AddCommand(commandCmd)
}

type outcome struct {
	result  command.Outcome
	message string
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	deviceID, method := args[0], args[1]

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	done := make(chan outcome, 1)
	disp, dev, err := svc.NewDispatcher(deviceID, command.Callbacks{
		OnSuccess: func(string) { done <- outcome{result: command.OutcomeConfirmed} },
		OnTimeout: func(string) { done <- outcome{result: command.OutcomeTimedOut} },
		OnError: func(_ string, msg string) {
			done <- outcome{result: command.OutcomeDispatchFailed, message: msg}
		},
	})
	if err != nil {
		return err
	}
	defer disp.Close()

	if !skipOnlineCheck {
		if err := dev.RequireOnline(ctx); err != nil {
			return err
		}
	}
	c := command.Command{Method: method, Params: parseValue(args[2])}
	if expectedFlag != "" {
		c.Expected = parseValue(expectedFlag)
	}
	started := time.Now()
	disp.SendCommand(ctx, c)

	select {
	case o := <-done:
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s after %s\n", deviceID, method, o.result, time.Since(started).Round(time.Millisecond))
		if err := o.result.Err(); err != nil {
			if o.message != "" {
				return fmt.Errorf("%w: %s", err, o.message)
			}
			return err
		}
		return nil
	case <-time.After(outcomeTimeout):
		return fmt.Errorf("no outcome for %s after %s", method, outcomeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseValue decodes s as JSON, keeping numbers exact, or returns s.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}
