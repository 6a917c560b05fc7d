// Package syslog implements the syslog (push) source adapter (spec.md
// §4.2): a UDP/TCP/TLS listener that parses incoming lines and emits one
// RawEvent per accepted message, dropping events the downstream queue can't
// accept rather than blocking the listener goroutine.
package syslog

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

const maxUDPPacket = 64 * 1024

// Adapter is the syslog push SourceAdapter. Exactly one of udpConn / tcpListener
// is active at a time, selected by Configuration.Protocol.
type Adapter struct {
	config    domain.SyslogConfig
	sink      connector.EventSink
	status    connector.StatusReporter
	logger    core.Logger
	tlsConfig *tls.Config

	mu         sync.Mutex
	udpConn    net.PacketConn
	tcpListener net.Listener
	wg          sync.WaitGroup
	stopped     bool
}

type Config struct {
	Configuration domain.SyslogConfig
	Sink          connector.EventSink
	Status        connector.StatusReporter
	Logger        core.Logger
	TLSConfig     *tls.Config
}

func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Adapter{
		config:    cfg.Configuration,
		sink:      cfg.Sink,
		status:    cfg.Status,
		logger:    logger,
		tlsConfig: cfg.TLSConfig,
	}
}

func (a *Adapter) addr() string {
	return fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)
}

func (a *Adapter) Start(ctx context.Context) error {
	switch a.config.Protocol {
	case "udp":
		return a.startUDP(ctx)
	case "tcp":
		return a.startTCP(ctx, nil)
	case "tls":
		if a.tlsConfig == nil {
			return fmt.Errorf("%w: tls protocol requires a tls.Config", core.ErrConfigInvalid)
		}
		return a.startTCP(ctx, a.tlsConfig)
	default:
		return fmt.Errorf("%w: unsupported syslog protocol %q", core.ErrConfigInvalid, a.config.Protocol)
	}
}

func (a *Adapter) startUDP(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", a.addr())
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrAdapterUnavailable, err)
	}
	a.mu.Lock()
	a.udpConn = conn
	a.mu.Unlock()

	a.wg.Add(1)
	go a.udpLoop(conn)
	return nil
}

func (a *Adapter) udpLoop(conn net.PacketConn) {
	defer a.wg.Done()
	buf := make([]byte, maxUDPPacket)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if a.isStopped() {
				return
			}
			a.logger.Warn("syslog udp read failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		a.handleLine(string(buf[:n]), time.Now(), hostOf(addr))
	}
}

// hostOf strips the port off a net.Addr, since spec.md §4.2's sourceIp is
// the peer's address, not its ephemeral source port.
func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (a *Adapter) startTCP(ctx context.Context, tlsCfg *tls.Config) error {
	var ln net.Listener
	var err error
	if tlsCfg != nil {
		ln, err = tls.Listen("tcp", a.addr(), tlsCfg)
	} else {
		ln, err = net.Listen("tcp", a.addr())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrAdapterUnavailable, err)
	}
	a.mu.Lock()
	a.tcpListener = ln
	a.mu.Unlock()

	a.wg.Add(1)
	go a.acceptLoop(ln)
	return nil
}

func (a *Adapter) acceptLoop(ln net.Listener) {
	defer a.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.isStopped() {
				return
			}
			a.logger.Warn("syslog accept failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		a.wg.Add(1)
		go a.connLoop(conn)
	}
}

func (a *Adapter) connLoop(conn net.Conn) {
	defer a.wg.Done()
	defer conn.Close()
	sourceIP := hostOf(conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxUDPPacket)
	for scanner.Scan() {
		a.handleLine(scanner.Text(), time.Now(), sourceIP)
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	a.stopped = true
	conn := a.udpConn
	ln := a.tcpListener
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if ln != nil {
		ln.Close()
	}
	a.wg.Wait()
	return nil
}

func (a *Adapter) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// RunOnce is a stats-refresh no-op for push adapters (spec.md §4.2): there
// is no unit of polling work, the listener already runs continuously.
func (a *Adapter) RunOnce(ctx context.Context) error { return nil }

func (a *Adapter) TestConnection(ctx context.Context) (bool, string, error) {
	switch a.config.Protocol {
	case "udp":
		conn, err := net.ListenPacket("udp", a.addr())
		if err != nil {
			return false, err.Error(), nil
		}
		conn.Close()
	case "tcp", "tls":
		ln, err := net.Listen("tcp", a.addr())
		if err != nil {
			return false, err.Error(), nil
		}
		ln.Close()
	}
	return true, "ok", nil
}

// handleLine parses one line, applies the facility/severity allow-list, and
// emits or drops it. A queue-full drop bumps the connector's error count by
// routing through SetStatus rather than blocking the listener goroutine
// (spec.md §7: "push adapters drop the event and increment errorCount").
func (a *Adapter) handleLine(line string, receivedAt time.Time, sourceIP string) {
	if line == "" {
		return
	}
	parsed, err := Parse(line, receivedAt)
	if err != nil {
		a.logger.Warn("dropping unparseable syslog line", map[string]interface{}{"error": err.Error()})
		return
	}
	if !a.allowed(parsed) {
		return
	}
	parsed.SourceIP = sourceIP

	event := domain.NewRawEvent(receivedAt, "syslog", "syslog", map[string]interface{}{
		"facility":   parsed.Facility,
		"severity":   parsed.Severity,
		"hostname":   parsed.Hostname,
		"appName":    parsed.AppName,
		"procId":     parsed.ProcID,
		"msgId":      parsed.MsgID,
		"message":    parsed.Message,
		"rawMessage": parsed.RawMessage,
		"sourceIp":   parsed.SourceIP,
	}, nil, nil)

	if err := a.sink.Emit(context.Background(), event); err != nil {
		if errors.Is(err, core.ErrQueueFull) && a.status != nil {
			a.status.SetStatus(domain.StatusError, "job queue full, dropping event")
		}
	}
}

func (a *Adapter) allowed(msg Message) bool {
	f := a.config.Filtering
	if f == nil {
		return true
	}
	if len(f.Facilities) > 0 && !containsInt(f.Facilities, msg.Facility) {
		return false
	}
	if len(f.Severities) > 0 && !containsInt(f.Severities, msg.Severity) {
		return false
	}
	return true
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

var _ connector.SourceAdapter = (*Adapter)(nil)
