package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"printfleet/internal/model"
)

var (
	ErrSNMPConnect = errors.New("snmp connect failed")
	ErrSNMPGet     = errors.New("snmp get failed")
	ErrNoSuchOID   = errors.New("no such oid on device")
)

// Value is one decoded SNMP reading. Exactly one of Int/Str is meaningful,
// indicated by IsString.
type Value struct {
	Int      int64
	Str      string
	IsString bool
}

func (v Value) String() string {
	if v.IsString {
		return v.Str
	}
	return fmt.Sprintf("%d", v.Int)
}

// Client issues single-OID queries against one printer. Each poll owns its
// client; Close releases the UDP socket.
type Client interface {
	Get(oid string) (Value, error)
	Close() error
}

// ClientFactory opens a client for one printer using the profile's connection
// parameters. Swapped out in tests.
type ClientFactory func(ip string, profile model.OIDProfile) (Client, error)

type snmpClient struct {
	conn *gosnmp.GoSNMP
}

// NewClient connects a gosnmp client configured from the profile.
func NewClient(ip string, profile model.OIDProfile) (Client, error) {
	version := gosnmp.Version2c
	if profile.SNMPVersion == "1" {
		version = gosnmp.Version1
	}

	port := profile.Port
	if port == 0 {
		port = 161
	}
	timeout := time.Duration(profile.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	conn := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      port,
		Community: profile.Community,
		Version:   version,
		Timeout:   timeout,
		Retries:   profile.Retries,
	}

	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSNMPConnect, err)
	}
	return &snmpClient{conn: conn}, nil
}

func (c *snmpClient) Get(oid string) (Value, error) {
	result, err := c.conn.Get([]string{oid})
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrSNMPGet, err)
	}
	if result.Error != gosnmp.NoError {
		return Value{}, fmt.Errorf("%w: %s", ErrSNMPGet, result.Error)
	}
	if len(result.Variables) == 0 {
		return Value{}, ErrNoSuchOID
	}
	return decodePDU(result.Variables[0])
}

func (c *snmpClient) Close() error {
	if c.conn.Conn != nil {
		return c.conn.Conn.Close()
	}
	return nil
}

func decodePDU(pdu gosnmp.SnmpPDU) (Value, error) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return Value{}, ErrNoSuchOID
	case gosnmp.OctetString:
		raw, ok := pdu.Value.([]byte)
		if !ok {
			return Value{}, fmt.Errorf("%w: unexpected octet string payload %T", ErrSNMPGet, pdu.Value)
		}
		return Value{Str: string(raw), IsString: true}, nil
	case gosnmp.ObjectIdentifier, gosnmp.IPAddress:
		s, ok := pdu.Value.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: unexpected value %T for %v", ErrSNMPGet, pdu.Value, pdu.Type)
		}
		return Value{Str: s, IsString: true}, nil
	default:
		big := gosnmp.ToBigInt(pdu.Value)
		if big == nil {
			return Value{}, fmt.Errorf("%w: unexpected value %T for %v", ErrSNMPGet, pdu.Value, pdu.Type)
		}
		return Value{Int: big.Int64()}, nil
	}
}
