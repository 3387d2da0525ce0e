package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"printfleet/internal/config"
	"printfleet/internal/driver"
	"printfleet/internal/model"
	"printfleet/internal/protocol"
	"printfleet/internal/telemetry"
)

// Client is the device-agent runtime: it keeps one session to the control
// plane alive, executes the commands that arrive on it, and reconnects on a
// fixed interval whenever the session drops.
type Client struct {
	cfg      config.AgentConfig
	pipeline *driver.Pipeline
	poller   *telemetry.Poller
	log      zerolog.Logger

	mu    sync.Mutex
	token string
}

func New(cfg config.AgentConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		pipeline: driver.NewPipeline(driver.NewInstaller(log), cfg.DriverWorkDir, log),
		poller:   telemetry.NewPoller(nil, log),
		log:      log,
	}
}

// Run blocks until ctx is cancelled or the credential is rejected. Every
// other failure is retried after the reconnect interval.
func (c *Client) Run(ctx context.Context) error {
	if token, ok := loadToken(c.cfg.AgentTokenFile); ok {
		c.setToken(token)
	}

	for {
		if c.getToken() == "" {
			if err := c.register(ctx); err != nil {
				return err
			}
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.log.Warn().Err(err).
				Dur("retry_in", c.cfg.ReconnectInterval).
				Msg("session ended, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

func (c *Client) register(ctx context.Context) error {
	for {
		token, err := Register(ctx, c.cfg)
		if err == nil {
			c.setToken(token)
			if err := saveToken(c.cfg.AgentTokenFile, token); err != nil {
				c.log.Warn().Err(err).Msg("persist agent token")
			}
			c.log.Info().Msg("registered with control plane")
			return nil
		}
		if errors.Is(err, ErrCredentialRejected) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		c.log.Warn().Err(err).
			Dur("retry_in", c.cfg.ReconnectInterval).
			Msg("registration failed, retrying")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// session dials the command channel and services it until it breaks. A 401 on
// the handshake means the stored token is no longer honored; it is discarded
// so the next attempt re-registers.
func (c *Client) session(ctx context.Context) error {
	endpoint, err := wsURL(c.cfg.ServerURL, "/ws/session")
	if err != nil {
		return err
	}
	endpoint += "?token=" + c.getToken()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.setToken("")
			return fmt.Errorf("session token rejected, re-registering")
		}
		return fmt.Errorf("dial session channel: %w", err)
	}

	writer := &sessionWriter{conn: ws}
	defer func() { _ = ws.Close() }()

	c.log.Info().Msg("session established")

	done := make(chan struct{})
	defer close(done)

	go c.heartbeatLoop(ctx, writer, done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("session read: %w", err)
		}

		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("undecodable message on session")
			msg := "malformed message"
			if errors.Is(err, protocol.ErrUnknownMessageType) {
				msg = err.Error()
			}
			c.send(writer, protocol.NewError(msg))
			continue
		}

		switch env.Type {
		case protocol.TypeHeartbeatResponse:
			c.log.Debug().Msg("heartbeat acknowledged")

		case protocol.TypeInstallPrinter:
			var msg protocol.InstallPrinter
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				c.log.Warn().Err(err).Msg("bad install_printer payload")
				continue
			}
			go c.handleInstall(ctx, writer, msg)

		case protocol.TypePollPrinter:
			var msg protocol.PollPrinter
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				c.log.Warn().Err(err).Msg("bad poll_printer payload")
				continue
			}
			go c.handlePoll(ctx, writer, msg)

		case protocol.TypeTunnelOpen, protocol.TypeTunnelClose:
			c.log.Warn().Str("type", string(env.Type)).Msg("tunnel command not supported")
			c.send(writer, protocol.NewError("tunnel not supported"))

		case protocol.TypeError:
			var msg protocol.ErrorMessage
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				continue
			}
			c.log.Warn().Str("message", msg.Message).Msg("server reported error")

		default:
			c.log.Warn().Str("type", string(env.Type)).Msg("unexpected message on session")
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, writer *sessionWriter, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(writer, protocol.Heartbeat{Type: protocol.TypeHeartbeat}); err != nil {
				return
			}
		}
	}
}

// handleInstall runs the provisioning pipeline and always reports a result,
// success or not.
func (c *Client) handleInstall(ctx context.Context, writer *sessionWriter, msg protocol.InstallPrinter) {
	c.log.Info().
		Str("printer_ip", msg.PrinterIP).
		Str("model", msg.Model).
		Str("driver", msg.DriverName).
		Msg("installing printer")

	result := c.pipeline.Install(ctx, driver.Job{
		DriverURL:    msg.DriverURL,
		DriverName:   msg.DriverName,
		AuthToken:    c.getToken(),
		PrinterIP:    msg.PrinterIP,
		Manufacturer: msg.Manufacturer,
		Model:        msg.Model,
	})

	_ = c.send(writer, protocol.InstallationResult{
		Type:      protocol.TypeInstallationResult,
		RequestID: msg.RequestID,
		Result:    result,
	})
}

func (c *Client) handlePoll(ctx context.Context, writer *sessionWriter, msg protocol.PollPrinter) {
	sample := c.poller.Poll(ctx, model.Printer{ID: msg.PrinterID, IP: msg.PrinterIP}, msg.Profile)

	_ = c.send(writer, protocol.TelemetryReport{
		Type:      protocol.TypeTelemetryReport,
		RequestID: msg.RequestID,
		Sample:    sample,
	})
}

func (c *Client) send(writer *sessionWriter, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := writer.Write(data); err != nil {
		c.log.Warn().Err(err).Msg("session write failed")
		return err
	}
	return nil
}

func (c *Client) getToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type sessionWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *sessionWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}
