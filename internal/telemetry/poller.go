package telemetry

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"printfleet/internal/model"
)

// Supply criticality thresholds, as current/max percentages.
const (
	tonerCriticalPct      = 10.0
	consumableCriticalPct = 15.0
)

// Poller turns one printer plus one OID profile into a telemetry sample. A
// failing OID never aborts the poll: the metric is recorded as failed and the
// rest of the sample stands.
type Poller struct {
	newClient ClientFactory
	log       zerolog.Logger
	now       func() time.Time
}

func NewPoller(factory ClientFactory, log zerolog.Logger) *Poller {
	if factory == nil {
		factory = NewClient
	}
	return &Poller{
		newClient: factory,
		log:       log.With().Str("component", "telemetry").Logger(),
		now:       time.Now,
	}
}

// Poll queries every configured, non-empty OID in the profile independently.
// It always returns a sample; completeness is judged by Usable.
func (p *Poller) Poll(ctx context.Context, printer model.Printer, profile model.OIDProfile) model.TelemetrySample {
	sample := model.TelemetrySample{
		PrinterID: printer.ID,
		PrinterIP: printer.IP,
		Status:    model.PrinterStatusUnknown,
		PolledAt:  p.now().UnixMilli(),
	}

	client, err := p.newClient(printer.IP, profile)
	if err != nil {
		p.log.Warn().Str("printer_ip", printer.IP).Err(err).Msg("snmp connect failed")
		return sample
	}
	defer func() { _ = client.Close() }()

	p.pollStatus(ctx, client, profile, &sample)
	p.pollSupplies(ctx, client, profile, &sample)
	p.pollCounters(ctx, client, profile, &sample)
	p.pollSystem(ctx, client, profile, &sample)

	return sample
}

func (p *Poller) get(ctx context.Context, client Client, oid string) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	return client.Get(oid)
}

func (p *Poller) pollStatus(ctx context.Context, client Client, profile model.OIDProfile, sample *model.TelemetrySample) {
	if profile.StatusOID == "" {
		return
	}

	value, err := p.get(ctx, client, profile.StatusOID)
	if err != nil {
		p.log.Debug().Str("printer_ip", sample.PrinterIP).Str("oid", profile.StatusOID).Err(err).
			Msg("status query failed")
		sample.FailedOIDs = append(sample.FailedOIDs, profile.StatusOID)
		return
	}

	sample.StatusRaw = value.String()
	sample.Status = mapStatus(value, profile.StatusMap)
}

// mapStatus resolves a raw status reading through the profile's value map.
// Unmapped codes become "unknown" rather than failing the poll.
func mapStatus(value Value, statusMap map[string]string) model.PrinterStatus {
	label, ok := statusMap[value.String()]
	if !ok {
		return model.PrinterStatusUnknown
	}
	switch label {
	case "idle":
		return model.PrinterStatusIdle
	case "printing":
		return model.PrinterStatusPrinting
	case "warmup":
		return model.PrinterStatusWarmup
	case "error", "down":
		return model.PrinterStatusError
	default:
		return model.PrinterStatusUnknown
	}
}

func (p *Poller) pollSupplies(ctx context.Context, client Client, profile model.OIDProfile, sample *model.TelemetrySample) {
	names := make([]string, 0, len(profile.SupplyOIDs))
	for name := range profile.SupplyOIDs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		oids := profile.SupplyOIDs[name]
		if oids.Level == "" {
			continue
		}

		level, err := p.get(ctx, client, oids.Level)
		if err != nil {
			sample.FailedOIDs = append(sample.FailedOIDs, oids.Level)
			continue
		}

		supply := model.Supply{
			Name:  name,
			Type:  oids.Type,
			Level: level.Int,
			Max:   -1,
		}

		if oids.Max != "" {
			if max, err := p.get(ctx, client, oids.Max); err == nil && max.Int > 0 {
				supply.Max = max.Int
				supply.Percentage = float64(level.Int) / float64(max.Int) * 100
			} else if err != nil {
				sample.FailedOIDs = append(sample.FailedOIDs, oids.Max)
			}
		}

		if oids.Status != "" {
			if st, err := p.get(ctx, client, oids.Status); err == nil {
				supply.Status = mapSupplyStatus(st, profile.StatusMap)
			}
		}
		if supply.Status == "" {
			supply.Status = "ok"
		}

		if supply.Max > 0 && IsCriticalSupply(supply.Type, supply.Percentage) {
			supply.Critical = true
			supply.Status = "critical"
			sample.Alerts = append(sample.Alerts, model.Alert{
				Supply:   name,
				Type:     supply.Type,
				Severity: "critical",
				Message:  criticalMessage(name, supply.Percentage),
				RaisedAt: sample.PolledAt,
			})
		}

		sample.Supplies = append(sample.Supplies, supply)
	}
}

func mapSupplyStatus(value Value, statusMap map[string]string) string {
	if label, ok := statusMap[value.String()]; ok {
		return label
	}
	return "unknown"
}

// IsCriticalSupply applies the threshold policy: toner below 10%, any other
// consumable (drum, maintenance kit, waste box) below 15%.
func IsCriticalSupply(kind model.SupplyType, percentage float64) bool {
	if kind == model.SupplyToner {
		return percentage < tonerCriticalPct
	}
	return percentage < consumableCriticalPct
}

func criticalMessage(name string, percentage float64) string {
	return name + " at " + strconv.FormatFloat(percentage, 'f', 1, 64) + "%"
}

func (p *Poller) pollCounters(ctx context.Context, client Client, profile model.OIDProfile, sample *model.TelemetrySample) {
	names := make([]string, 0, len(profile.CounterOIDs))
	for name := range profile.CounterOIDs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		oid := profile.CounterOIDs[name]
		if oid == "" {
			continue
		}

		value, err := p.get(ctx, client, oid)
		if err != nil {
			// Failed counters stay in the sample with a nil value so the
			// caller can tell "not polled" from zero.
			sample.FailedOIDs = append(sample.FailedOIDs, oid)
			sample.Counters = append(sample.Counters, model.Counter{Name: name})
			continue
		}

		v := value.Int
		sample.Counters = append(sample.Counters, model.Counter{Name: name, Value: &v})
	}
}

func (p *Poller) pollSystem(ctx context.Context, client Client, profile model.OIDProfile, sample *model.TelemetrySample) {
	names := make([]string, 0, len(profile.SystemOIDs))
	for name := range profile.SystemOIDs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		oid := profile.SystemOIDs[name]
		if oid == "" {
			continue
		}

		value, err := p.get(ctx, client, oid)
		if err != nil {
			sample.FailedOIDs = append(sample.FailedOIDs, oid)
			continue
		}
		if sample.System == nil {
			sample.System = make(map[string]string)
		}
		sample.System[name] = value.String()
	}
}

// Usable reports whether a sample carries any data worth recording. A poll
// where every query failed counts toward the consecutive-failure policy.
func Usable(sample model.TelemetrySample) bool {
	if len(sample.Supplies) > 0 || len(sample.System) > 0 {
		return true
	}
	for _, c := range sample.Counters {
		if c.Value != nil {
			return true
		}
	}
	return sample.Status != model.PrinterStatusUnknown
}
