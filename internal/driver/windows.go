package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// windowsInstaller drives the Windows print subsystem through pnputil and the
// printing PowerShell cmdlets.
type windowsInstaller struct {
	run runner
	log zerolog.Logger
}

func newWindowsInstaller(log zerolog.Logger) *windowsInstaller {
	return &windowsInstaller{
		run: execRunner,
		log: log.With().Str("component", "installer").Str("platform", "windows").Logger(),
	}
}

func (w *windowsInstaller) DescriptorExts() []string { return []string{".inf"} }

func (w *windowsInstaller) Install(ctx context.Context, descriptorPath, printerIP, manufacturer, model string) error {
	portName := "IP_" + printerIP
	queueName := queueNameFor(manufacturer, model)

	if out, err := w.run(ctx, "pnputil", "/add-driver", descriptorPath, "/install"); err != nil {
		return fmt.Errorf("driver registration failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	if err := w.ensurePort(ctx, portName, printerIP); err != nil {
		return err
	}

	addPrinter := fmt.Sprintf("Add-Printer -Name %q -DriverName %q -PortName %q", queueName, model, portName)
	if out, err := w.run(ctx, "powershell", "-NoProfile", "-Command", addPrinter); err != nil {
		return fmt.Errorf("queue creation failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	// Queue-level driver association is best effort: some drivers refuse the
	// rename and the queue still works.
	setDriver := fmt.Sprintf("Set-Printer -Name %q -DriverName %q", queueName, model)
	if out, err := w.run(ctx, "powershell", "-NoProfile", "-Command", setDriver); err != nil {
		w.log.Warn().Err(err).Str("queue", queueName).
			Str("output", strings.TrimSpace(string(out))).
			Msg("queue driver association failed")
	}

	return nil
}

// ensurePort creates the TCP/IP device port unless it already exists.
func (w *windowsInstaller) ensurePort(ctx context.Context, portName, printerIP string) error {
	check := fmt.Sprintf("Get-PrinterPort -Name %q", portName)
	if _, err := w.run(ctx, "powershell", "-NoProfile", "-Command", check); err == nil {
		w.log.Debug().Str("port", portName).Msg("port already exists")
		return nil
	}

	add := fmt.Sprintf("Add-PrinterPort -Name %q -PrinterHostAddress %q", portName, printerIP)
	if out, err := w.run(ctx, "powershell", "-NoProfile", "-Command", add); err != nil {
		return fmt.Errorf("port creation failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func queueNameFor(manufacturer, model string) string {
	name := strings.TrimSpace(manufacturer + " " + model)
	if name == "" {
		return "printfleet-queue"
	}
	return name
}
