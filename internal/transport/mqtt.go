package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"

	"github.com/edgesim/edgesim/helpers"
	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
	telemetry_config "github.com/edgesim/edgesim/telemetry/config"
)

const (
	DefaultNetworkTimeout    = 30 * time.Second
	DefaultKeepalive         = 60 * time.Second
	DefaultReconnectInterval = 3 * time.Second
)

// Presence payloads on the connect topic. The will carries
// presenceDown so the broker announces an unclean exit.
var (
	presenceUp   = []byte{0x01}
	presenceDown = []byte{0x00}
)

// Mqtt publishes telemetry over paho with auto-reconnect. Connection
// lifecycle handlers are folded into the EventFunc dispatch; the client
// itself keeps retrying in background until Close.
type Mqtt struct {
	log            *log2.Log
	m              mqtt.Client
	onEvent        EventFunc
	topicTelemetry string
	topicConnect   string
	networkTimeout time.Duration
}

func (t *Mqtt) Start(ctx context.Context, log *log2.Log, cfg telemetry_config.Config, onEvent EventFunc) error {
	if onEvent == nil {
		panic("code error transport.Mqtt onEvent=nil")
	}
	t.log = log.Clone(log2.LInfo)
	if cfg.MqttLogDebug {
		t.log.SetLevel(log2.LDebug)
	}
	t.onEvent = onEvent
	t.topicTelemetry = telemetry.TopicTelemetry(cfg.DeviceID)
	t.topicConnect = telemetry.TopicConnect(cfg.DeviceID)
	t.networkTimeout = helpers.IntSecondDefault(cfg.NetworkTimeoutSec, DefaultNetworkTimeout)

	if _, err := url.ParseRequestURI(cfg.MqttBroker); err != nil {
		return errors.Annotatef(err, "config error mqtt broker=%s", cfg.MqttBroker)
	}

	mqtt.ERROR = pahoLogger{t.log, log2.LError}
	mqtt.CRITICAL = pahoLogger{t.log, log2.LError}
	mqtt.WARN = pahoLogger{t.log, log2.LInfo}
	if cfg.MqttLogDebug {
		mqtt.DEBUG = pahoLogger{t.log, log2.LDebug}
	}

	tlsconf := &tls.Config{InsecureSkipVerify: cfg.TlsSkipVerify} //nolint:gosec
	if cfg.TlsCaFile != "" {
		cabytes, err := os.ReadFile(cfg.TlsCaFile)
		if err != nil {
			return errors.Annotate(err, "config error mqtt TLS CA")
		}
		tlsconf.RootCAs = x509.NewCertPool()
		tlsconf.RootCAs.AppendCertsFromPEM(cabytes)
	}

	keepAlive := helpers.IntSecondDefault(cfg.KeepaliveSec, DefaultKeepalive)
	reconnect := helpers.IntMillisecondDefault(cfg.ReconnectIntervalMs, DefaultReconnectInterval)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MqttBroker).
		SetClientID(cfg.DeviceID).
		SetUsername(cfg.DeviceID).
		SetPassword(cfg.MqttPassword).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetPingTimeout(t.networkTimeout).
		SetOrderMatters(false).
		SetTLSConfig(tlsconf).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnect).
		SetMaxReconnectInterval(reconnect).
		SetBinaryWill(t.topicConnect, presenceDown, 1, true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost).
		SetReconnectingHandler(t.onReconnecting)

	t.m = mqtt.NewClient(opts)
	token := t.m.Connect()
	// network errors surface through lifecycle handlers, not here
	if err := token.Error(); err != nil {
		t.log.Errorf("mqtt connect err=%v", err)
	}
	return nil
}

func (t *Mqtt) Publish(payload []byte, wait bool) error {
	token := t.m.Publish(t.topicTelemetry, 1, false, payload)
	if !wait {
		return nil
	}
	if !token.WaitTimeout(t.networkTimeout) {
		return errors.Timeoutf("mqtt publish ack")
	}
	return errors.Annotate(token.Error(), "mqtt publish")
}

func (t *Mqtt) Close() error {
	if t.m == nil {
		return nil
	}
	if t.m.IsConnectionOpen() {
		// graceful counterpart of the will
		t.m.Publish(t.topicConnect, 1, true, presenceDown).WaitTimeout(t.networkTimeout)
	}
	t.m.Disconnect(250)
	return nil
}

func (t *Mqtt) onConnect(c mqtt.Client) {
	t.log.Infof("mqtt connect broker ok")
	c.Publish(t.topicConnect, 1, true, presenceUp)
	t.onEvent(telemetry.EventConnect)
}

func (t *Mqtt) onConnectionLost(_ mqtt.Client, err error) {
	t.log.Errorf("mqtt connection lost err=%v", err)
	t.onEvent(telemetry.EventDisconnect)
}

func (t *Mqtt) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	t.log.Debugf("mqtt reconnecting")
	t.onEvent(telemetry.EventReconnect)
}

// paho wants Println/Printf pairs per severity
type pahoLogger struct {
	log   *log2.Log
	level log2.Level
}

func (p pahoLogger) Println(v ...interface{}) { p.log.Log(p.level, "mqtt: "+fmt.Sprint(v...)) }
func (p pahoLogger) Printf(format string, v ...interface{}) {
	p.log.Logf(p.level, "mqtt: "+format, v...)
}
