// Package mqtt publishes the current price and the day summary as
// retained messages, so home automation picks them up on connect.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/spotprice-go/query"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type Options struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ClientId    string
	TopicPrefix string
}

// client is the part of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client client
	logger *slog.Logger
	prefix string
}

func New(opts Options) *Publisher {
	logger := slog.Default().With("module", "mqtt")

	co := paho.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	co.SetClientID(opts.ClientId)
	co.SetUsername(opts.Username)
	co.SetPassword(opts.Password)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.OnConnect = func(_ paho.Client) {
		logger.Info("MQTT connected", slog.String("broker", fmt.Sprintf("%s:%d", opts.Host, opts.Port)))
	}
	co.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	pahoLog := slog.Default().With("module", "paho")
	paho.CRITICAL = newPahoLogger(pahoLog, slog.LevelError)
	paho.ERROR = newPahoLogger(pahoLog, slog.LevelError)
	paho.WARN = newPahoLogger(pahoLog, slog.LevelWarn)

	return newPublisher(paho.NewClient(co), logger, opts.TopicPrefix)
}

func newPublisher(c client, logger *slog.Logger, prefix string) *Publisher {
	return &Publisher{client: c, logger: logger, prefix: strings.Trim(prefix, "/")}
}

// Connect does not block on an unreachable broker, the client keeps
// retrying in the background.
func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	token := p.client.Connect()
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return fmt.Errorf("connecting MQTT client: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	p.logger.Info("disconnecting MQTT client")
	p.client.Disconnect(250)
}

func (p *Publisher) topic(area, name string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, strings.ToLower(area), name)
}

// PublishSummary sends the current window to <prefix>/<area>/current and
// the whole summary to <prefix>/<area>/summary. An unknown current price
// is published as null.
func (p *Publisher) PublishSummary(sum query.DaySummary) error {
	current, err := json.Marshal(sum.Current)
	if err != nil {
		return fmt.Errorf("encoding current price: %w", err)
	}
	if err := p.publish(p.topic(sum.Area, "current"), current); err != nil {
		return err
	}

	summary, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return p.publish(p.topic(sum.Area, "summary"), summary)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout when publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("error when publishing to %s: %w", topic, err)
	}
	p.logger.Debug("published", slog.String("topic", topic), slog.Int("bytes", len(payload)))
	return nil
}
