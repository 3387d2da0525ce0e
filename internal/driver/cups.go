package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// cupsInstaller registers drivers with CUPS via lpadmin. The device port on
// CUPS is the queue's device URI; "port creation" means pointing the queue at
// the printer's JetDirect socket.
type cupsInstaller struct {
	run runner
	log zerolog.Logger
}

func newCUPSInstaller(log zerolog.Logger) *cupsInstaller {
	return &cupsInstaller{
		run: execRunner,
		log: log.With().Str("component", "installer").Str("platform", "cups").Logger(),
	}
}

func (c *cupsInstaller) DescriptorExts() []string { return []string{".ppd"} }

func (c *cupsInstaller) Install(ctx context.Context, descriptorPath, printerIP, manufacturer, model string) error {
	queueName := cupsQueueName(manufacturer, model)
	deviceURI := fmt.Sprintf("socket://%s:9100", printerIP)

	if c.queueExists(ctx, queueName, deviceURI) {
		c.log.Debug().Str("queue", queueName).Msg("queue already bound to port")
	}

	// lpadmin registers the PPD, binds the device URI, and creates the queue
	// in one call; re-running it for an existing queue updates it in place.
	out, err := c.run(ctx, "lpadmin",
		"-p", queueName,
		"-v", deviceURI,
		"-P", descriptorPath,
		"-E")
	if err != nil {
		return fmt.Errorf("queue creation failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	// Accepting jobs is best effort; cupsenable can fail on older CUPS
	// builds where lpadmin -E already enabled the destination.
	if out, err := c.run(ctx, "cupsenable", queueName); err != nil {
		c.log.Warn().Err(err).Str("queue", queueName).
			Str("output", strings.TrimSpace(string(out))).
			Msg("enabling queue failed")
	}

	return nil
}

func (c *cupsInstaller) queueExists(ctx context.Context, queueName, deviceURI string) bool {
	out, err := c.run(ctx, "lpstat", "-v", queueName)
	if err != nil {
		return false
	}
	return strings.Contains(string(out), deviceURI)
}

func cupsQueueName(manufacturer, model string) string {
	name := strings.TrimSpace(manufacturer + "_" + model)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "_" || name == "" {
		return "printfleet_queue"
	}
	return name
}
