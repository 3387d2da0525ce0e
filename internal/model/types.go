package model

// Agent is a registered field device. ID is the identity token subject minted
// at registration; the token itself never leaves the auth layer.
type Agent struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"clientId"`
	Hostname   string     `json:"hostname"`
	OS         string     `json:"os"`
	Platform   string     `json:"platform"`
	SystemInfo SystemInfo `json:"systemInfo"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
}

// SystemInfo is the snapshot an agent sends when it registers.
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	KernelVersion string `json:"kernel_version"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
	AgentVersion  string `json:"agent_version"`
}

// PrinterStatus is the normalized device state derived from polling.
type PrinterStatus string

const (
	PrinterStatusUnknown  PrinterStatus = "unknown"
	PrinterStatusIdle     PrinterStatus = "idle"
	PrinterStatusPrinting PrinterStatus = "printing"
	PrinterStatusWarmup   PrinterStatus = "warmup"
	PrinterStatusError    PrinterStatus = "error"
)

type Printer struct {
	ID           string        `json:"id"`
	AgentID      string        `json:"agentId"`
	IP           string        `json:"ip"`
	Manufacturer string        `json:"manufacturer"`
	Model        string        `json:"model"`
	SerialNumber string        `json:"serialNumber,omitempty"`
	ProfileID    string        `json:"profileId"`
	Status       PrinterStatus `json:"status"`
	CreatedAt    int64         `json:"createdAt"`
	UpdatedAt    int64         `json:"updatedAt"`
}

// OIDProfile maps logical metric names to object identifiers for one
// manufacturer/model family, plus the connection parameters for talking to it.
// The telemetry engine treats profiles as read-only.
type OIDProfile struct {
	ID           string `json:"id"`
	Manufacturer string `json:"manufacturer"`
	ModelFamily  string `json:"modelFamily"`

	Community   string `json:"community"`
	SNMPVersion string `json:"snmpVersion"` // "1" or "2c"
	Port        uint16 `json:"port"`
	TimeoutSec  int    `json:"timeoutSec"`
	Retries     int    `json:"retries"`

	// Metric name -> OID. An empty OID disables that metric for the family.
	SupplyOIDs  map[string]SupplyOIDs `json:"supplyOids"`
	CounterOIDs map[string]string     `json:"counterOids"`
	StatusOID   string                `json:"statusOid"`
	SystemOIDs  map[string]string     `json:"systemOids"`

	// Raw status code -> human label, e.g. "3" -> "idle".
	StatusMap map[string]string `json:"statusMap"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// SupplyOIDs pairs the level/max/status OIDs for one consumable slot.
type SupplyOIDs struct {
	Type   SupplyType `json:"type"`
	Level  string     `json:"level"`
	Max    string     `json:"max"`
	Status string     `json:"status,omitempty"`
}

type SupplyType string

const (
	SupplyToner          SupplyType = "toner"
	SupplyDrum           SupplyType = "drum"
	SupplyMaintenanceKit SupplyType = "maintenance_kit"
	SupplyWasteBox       SupplyType = "waste_box"
)

// Supply is one consumable reading inside a telemetry sample.
type Supply struct {
	Name       string     `json:"name"`
	Type       SupplyType `json:"type"`
	Level      int64      `json:"level"`
	Max        int64      `json:"max"`
	Percentage float64    `json:"percentage"`
	Status     string     `json:"status"`
	Critical   bool       `json:"critical"`
}

// Counter is one page-counter reading. Value is nil when the query for its
// OID failed; the rest of the sample is still valid.
type Counter struct {
	Name  string `json:"name"`
	Value *int64 `json:"value"`
}

type Alert struct {
	Supply   string     `json:"supply"`
	Type     SupplyType `json:"type"`
	Severity string     `json:"severity"`
	Message  string     `json:"message"`
	RaisedAt int64      `json:"raisedAt"`
}

// TelemetrySample is one polling result for one printer. FailedOIDs records
// per-metric query failures without invalidating the sample.
type TelemetrySample struct {
	PrinterID  string            `json:"printerId"`
	PrinterIP  string            `json:"printerIp"`
	Status     PrinterStatus     `json:"status"`
	StatusRaw  string            `json:"statusRaw,omitempty"`
	Supplies   []Supply          `json:"supplies"`
	Counters   []Counter         `json:"counters"`
	System     map[string]string `json:"system,omitempty"`
	Alerts     []Alert           `json:"alerts,omitempty"`
	FailedOIDs []string          `json:"failedOids,omitempty"`
	PolledAt   int64             `json:"polledAt"`
}

// HistoryCategory names one bounded history ring per printer.
type HistoryCategory string

const (
	HistoryCounters      HistoryCategory = "counters"
	HistorySupplies      HistoryCategory = "supplies"
	HistoryErrors        HistoryCategory = "errors"
	HistoryStatusChanges HistoryCategory = "status_changes"
)

// HistoryEntry is one appended record in a history ring.
type HistoryEntry struct {
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// InstallResult is the terminal outcome of one provisioning attempt.
type InstallResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	PrinterIP    string `json:"printer_ip"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}
