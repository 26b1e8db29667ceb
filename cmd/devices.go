package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agrolink/core/store"
)

var statusOutput string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Device reachability commands",
}

var devicesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reachability sweep and print the result",
	RunE:  runDevicesCheck,
}

var devicesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted device statuses",
	RunE:  runDevicesStatus,
}

func init() {
	for _, c := range []*cobra.Command{devicesCheckCmd, devicesStatusCmd} {
		c.Flags().StringVarP(&statusOutput, "output", "o", "yaml", "output format: yaml or json")
		devicesCmd.AddCommand(c)
	}
	rootCmd.AddCommand(devicesCmd)
}

type deviceStatusView struct {
	Device       string     `json:"device" yaml:"device"`
	Online       bool       `json:"online" yaml:"online"`
	LastChecked  time.Time  `json:"last_checked" yaml:"last_checked"`
	OfflineSince *time.Time `json:"offline_since,omitempty" yaml:"offline_since,omitempty"`
}

func statusViews(sts []store.DeviceStatus) []deviceStatusView {
	views := make([]deviceStatusView, 0, len(sts))
	for _, st := range sts {
		v := deviceStatusView{Device: st.DeviceID, Online: st.Online, LastChecked: st.LastChecked}
		if !st.OfflineSince.IsZero() {
			since := st.OfflineSince
			v.OfflineSince = &since
		}
		views = append(views, v)
	}
	return views
}

func runDevicesCheck(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	if err := svc.Reachability.CheckAll(context.Background()); err != nil {
		return err
	}
	var sts []store.DeviceStatus
	for _, s := range svc.Reachability.Snapshots() {
		sts = append(sts, store.DeviceStatus{DeviceID: s.DeviceID, Online: s.Online, LastChecked: s.LastChecked, OfflineSince: s.OfflineSince})
	}
	return render(cmd.OutOrStdout(), statusOutput, statusViews(sts))
}

func runDevicesStatus(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	sts, err := svc.Store.Statuses(context.Background())
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), statusOutput, statusViews(sts))
}
