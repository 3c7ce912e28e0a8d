package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/control"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
	"github.com/avhost/av/internal/observability/metrics"
)

// Rejection reasons reported in metrics
const (
	reasonDecode  = "decode"
	reasonInvalid = "invalid"
	reasonEngine  = "engine"
	reasonTopic   = "topic"
)

// Engine is what the bridge drives and reports on
type Engine interface {
	control.Target
	Info() audiocore.StreamInfo
	Stats() audiocore.Stats
}

// Status is the payload published to <topic>/status
type Status struct {
	Online bool `json:"online"`
	audiocore.StreamInfo
	Stats     *audiocore.Stats `json:"stats,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// publisher is the subset of paho.Client used for status messages
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
}

// Bridge connects an engine to a broker
type Bridge struct {
	cfg     Config
	engine  Engine
	metrics *metrics.MQTTMetrics
	client  paho.Client
	log     logger.Logger
}

// NewBridge validates cfg. m may be nil.
func NewBridge(cfg Config, engine Engine, m *metrics.MQTTMetrics) (*Bridge, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Host == "" {
		return nil, errors.Newf("invalid broker URL %q", cfg.Broker).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return nil, errors.Newf("unsupported broker scheme %q", u.Scheme).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", cfg.Broker).
			Build()
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	if m == nil {
		if m, err = metrics.NewMQTTMetrics(prometheus.NewRegistry()); err != nil {
			return nil, err
		}
	}
	return &Bridge{
		cfg:     cfg,
		engine:  engine,
		metrics: m,
		log:     GetLogger().With(logger.String("broker", u.Redacted())),
	}, nil
}

func (b *Bridge) clientOptions() *paho.ClientOptions {
	offline, _ := json.Marshal(Status{Online: false, Timestamp: time.Now()})

	opts := paho.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetUsername(b.cfg.Username)
	opts.SetPassword(b.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(b.cfg.ConnectTimeout)
	opts.SetMaxReconnectInterval(b.cfg.MaxReconnect)
	opts.SetOrderMatters(false)
	opts.SetWill(b.cfg.topic(TopicStatus), string(offline), 1, true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		b.metrics.IncrementReconnectAttempts()
	})
	return opts
}

// Run connects, serves commands and publishes status until ctx is done.
// The broker being unreachable is not an error; paho keeps retrying.
func (b *Bridge) Run(ctx context.Context) error {
	b.client = paho.NewClient(b.clientOptions())
	b.log.Info("connecting to MQTT broker", logger.String("topic", b.cfg.Topic))

	token := b.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			b.metrics.IncrementErrors()
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryMQTTConnection).
				Context("operation", "connect").
				Build()
		}
	case <-ctx.Done():
		b.client.Disconnect(uint(b.cfg.DisconnectTimeout.Milliseconds()))
		return nil
	}

	ticker := time.NewTicker(b.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case <-ticker.C:
			if b.client.IsConnectionOpen() {
				if err := b.publishStatus(b.client, true); err != nil {
					b.log.Warn("status publish failed", logger.Error(err))
				}
			}
		}
	}
}

func (b *Bridge) shutdown() {
	if b.client.IsConnectionOpen() {
		if err := b.publishStatus(b.client, false); err != nil {
			b.log.Debug("offline status not delivered", logger.Error(err))
		}
	}
	b.client.Disconnect(uint(b.cfg.DisconnectTimeout.Milliseconds()))
	b.metrics.UpdateConnectionStatus(false)
	b.log.Info("disconnected from MQTT broker")
}

func (b *Bridge) onConnect(client paho.Client) {
	b.metrics.UpdateConnectionStatus(true)
	b.log.Info("connected to MQTT broker")

	filters := map[string]byte{
		b.cfg.topic(TopicCommands): 1,
		b.cfg.topic(TopicVoices):   1,
	}
	token := client.SubscribeMultiple(filters, b.onMessage)
	if !token.WaitTimeout(b.cfg.PublishTimeout) || token.Error() != nil {
		b.metrics.IncrementErrors()
		b.log.Error("subscribe failed",
			logger.String("topic", b.cfg.topic(TopicCommands)),
			logger.Error(token.Error()))
		return
	}

	if err := b.publishStatus(client, true); err != nil {
		b.log.Warn("status publish failed", logger.Error(err))
	}
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	b.metrics.UpdateConnectionStatus(false)
	b.metrics.IncrementErrors()
	b.log.Warn("connection to MQTT broker lost", logger.Error(err))
}

func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	if err := b.handle(msg.Topic(), msg.Payload()); err != nil {
		b.log.Warn("MQTT command rejected",
			logger.String("topic", msg.Topic()),
			logger.Error(err))
	}
}

// handle applies every record in payload and returns the first error
func (b *Bridge) handle(topic string, payload []byte) error {
	suffix := strings.TrimPrefix(topic, b.cfg.Topic+"/")
	switch suffix {
	case TopicCommands:
		reqs, err := decodeRecords[control.CommandRequest](payload)
		if err != nil {
			return b.reject(reasonDecode, err)
		}
		var first error
		for _, req := range reqs {
			b.metrics.IncrementCommandsReceived()
			if _, err := control.Apply(b.engine, req); err != nil {
				first = firstErr(first, b.reject(reasonFor(err), err))
			}
		}
		return first
	case TopicVoices:
		reqs, err := decodeRecords[control.VoiceRequest](payload)
		if err != nil {
			return b.reject(reasonDecode, err)
		}
		var first error
		for _, req := range reqs {
			b.metrics.IncrementCommandsReceived()
			if _, err := control.ApplyVoice(b.engine, req); err != nil {
				first = firstErr(first, b.reject(reasonFor(err), err))
			}
		}
		return first
	default:
		return b.reject(reasonTopic, errors.Newf("unexpected topic %q", topic).
			Component("mqtt").
			Category(errors.CategoryValidation).
			Build())
	}
}

func (b *Bridge) reject(reason string, err error) error {
	b.metrics.IncrementCommandsRejected(reason)
	return err
}

// firstErr keeps the first non-nil error
func firstErr(first, next error) error {
	if first != nil {
		return first
	}
	return next
}

func reasonFor(err error) string {
	if control.IsValidation(err) {
		return reasonInvalid
	}
	return reasonEngine
}

// decodeRecords accepts a single JSON object or an array of them
func decodeRecords[T any](payload []byte) ([]T, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, errors.Newf("empty payload").
			Component("mqtt").
			Category(errors.CategoryValidation).
			Build()
	}
	var records []T
	var err error
	if payload[0] == '[' {
		err = json.Unmarshal(payload, &records)
	} else {
		var one T
		err = json.Unmarshal(payload, &one)
		records = []T{one}
	}
	if err != nil {
		return nil, errors.New(err).
			Component("mqtt").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_payload").
			Build()
	}
	return records, nil
}

// status snapshots the engine
func (b *Bridge) status(online bool) Status {
	s := Status{Online: online, Timestamp: time.Now()}
	if online {
		stats := b.engine.Stats()
		s.StreamInfo = b.engine.Info()
		s.Stats = &stats
	}
	return s
}

func (b *Bridge) publishStatus(pub publisher, online bool) error {
	data, err := json.Marshal(b.status(online))
	if err != nil {
		return err
	}

	timer := b.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	token := pub.Publish(b.cfg.topic(TopicStatus), 0, true, data)
	if !token.WaitTimeout(b.cfg.PublishTimeout) {
		b.metrics.IncrementErrors()
		return errors.Newf("publish timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", b.cfg.topic(TopicStatus)).
			Build()
	}
	if err := token.Error(); err != nil {
		b.metrics.IncrementErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", b.cfg.topic(TopicStatus)).
			Build()
	}
	b.metrics.IncrementStatusPublished()
	return nil
}
