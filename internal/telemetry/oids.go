package telemetry

import "printfleet/internal/model"

// Standard Printer MIB (RFC 3805) and Host Resources MIB (RFC 2790) OIDs.
// Vendor profiles override these per model family; they are the fallback for
// anything SNMP-capable enough to speak the standard tables.
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"
	oidSysUptime   = "1.3.6.1.2.1.1.3.0"

	oidPrtSerialNumber = "1.3.6.1.2.1.43.5.1.1.17.1"

	// hrPrinterStatus: 1=other, 2=unknown, 3=idle, 4=printing, 5=warmup
	oidHrPrinterStatus = "1.3.6.1.2.1.25.3.5.1.1.1"

	// prtMarkerLifeCount.1.1 is commonly treated as the total page counter.
	oidPrtMarkerLifeCount = "1.3.6.1.2.1.43.10.2.1.4.1.1"

	// prtMarkerSupplies columns, row 1 (black toner on mono devices).
	oidPrtSuppliesLevel  = "1.3.6.1.2.1.43.11.1.1.9.1.1"
	oidPrtSuppliesMaxCap = "1.3.6.1.2.1.43.11.1.1.8.1.1"
)

// DefaultProfile is the generic Printer MIB profile used when no
// manufacturer-specific profile is registered.
func DefaultProfile() model.OIDProfile {
	return model.OIDProfile{
		Manufacturer: "generic",
		ModelFamily:  "printer-mib",
		Community:    "public",
		SNMPVersion:  "2c",
		Port:         161,
		TimeoutSec:   2,
		Retries:      1,
		SupplyOIDs: map[string]model.SupplyOIDs{
			"toner.black": {
				Type:  model.SupplyToner,
				Level: oidPrtSuppliesLevel,
				Max:   oidPrtSuppliesMaxCap,
			},
		},
		CounterOIDs: map[string]string{
			"counters.total": oidPrtMarkerLifeCount,
		},
		StatusOID: oidHrPrinterStatus,
		SystemOIDs: map[string]string{
			"system.description": oidSysDescr,
			"system.name":        oidSysName,
			"system.location":    oidSysLocation,
			"system.serial":      oidPrtSerialNumber,
		},
		StatusMap: map[string]string{
			"1": "other",
			"2": "unknown",
			"3": "idle",
			"4": "printing",
			"5": "warmup",
		},
	}
}
