package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"swc/internal/config"
	"swc/internal/notifications"
	"swc/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check tools, directories and notification settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			d := &doctor{printer: newStatusPrinter(cmd.OutOrStdout())}
			d.tools(cfg)
			d.printer.blank()
			d.filesystem(cfg)
			d.printer.blank()
			d.services(cmd, cfg, sendTest)

			if d.problems > 0 {
				return fmt.Errorf("%d check(s) failed", d.problems)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sendTest, "notify", false, "Send a test notification")
	return cmd
}

// doctor renders readiness checks and counts the blocking failures.
type doctor struct {
	printer  *statusPrinter
	problems int
}

func (d *doctor) report(label string, kind statusKind, detail string) {
	if kind == statusError {
		d.problems++
	}
	d.printer.line(label, kind, detail)
}

func (d *doctor) tools(cfg *config.Config) {
	d.printer.section("Tools")
	for _, status := range preflight.CheckSystemDeps(cfg) {
		switch {
		case status.Available:
			d.report(status.Name, statusOK, status.Command)
		case status.Optional:
			d.report(status.Name, statusWarn, status.Detail)
		default:
			d.report(status.Name, statusError, status.Detail)
		}
	}
}

func (d *doctor) filesystem(cfg *config.Config) {
	d.printer.section("Filesystem")
	for _, result := range preflight.RunAll(cfg) {
		switch {
		case result.Passed:
			d.report(result.Name, statusOK, result.Detail)
		case result.Advisory:
			d.report(result.Name, statusWarn, result.Detail)
		default:
			d.report(result.Name, statusError, result.Detail)
		}
	}
}

func (d *doctor) services(cmd *cobra.Command, cfg *config.Config, sendTest bool) {
	d.printer.section("Services")
	ntfy := preflight.CheckNtfy(cmd.Context(), cfg.Notifications.NtfyTopic)
	switch {
	case !ntfy.Passed:
		d.report(ntfy.Name, statusWarn, ntfy.Detail)
	case cfg.Notifications.NtfyTopic == "":
		d.report(ntfy.Name, statusInfo, ntfy.Detail)
	default:
		d.report(ntfy.Name, statusOK, ntfy.Detail)
	}
	d.report("History", statusInfo, fmt.Sprintf("enabled=%s %s", yesNo(cfg.History.Enabled), cfg.HistoryPath()))

	if !sendTest {
		return
	}
	svc := notifications.NewService(cfg)
	switch {
	case !notifications.Enabled(svc):
		d.report("Test notification", statusWarn, "ntfy_topic not configured")
	default:
		if err := svc.TestNotification(cmd.Context()); err != nil {
			d.report("Test notification", statusError, err.Error())
			return
		}
		d.report("Test notification", statusOK, "sent")
	}
}
