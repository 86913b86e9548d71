package mqtt

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/types"
	"github.com/angas/spotprice-go/types/maybe"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	published  []message
	publishErr error
}

func (c *fakeClient) Connect() paho.Token { return fakeToken{} }
func (c *fakeClient) Disconnect(uint)     {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.published = append(c.published, message{topic: topic, retained: retained, payload: string(payload.([]byte))})
	return fakeToken{err: c.publishErr}
}

func TestPublishSummary(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	w := types.PriceWindow{Start: start, End: start.Add(time.Hour), Price: decimal.RequireFromString("95.12")}

	c := &fakeClient{}
	p := newPublisher(c, slog.Default(), "/spotprice/")

	err := p.PublishSummary(query.DaySummary{
		Area:     "LV",
		Currency: "EUR",
		Current:  maybe.Some(w),
		Values:   []types.PriceWindow{w},
	})
	require.NoError(t, err)
	require.Len(t, c.published, 2)

	assert.Equal(t, "spotprice/lv/current", c.published[0].topic)
	assert.True(t, c.published[0].retained)
	assert.JSONEq(t, `{"start":"2025-03-01T00:00:00Z","end":"2025-03-01T01:00:00Z","price":95.12}`, c.published[0].payload)
	assert.Equal(t, "spotprice/lv/summary", c.published[1].topic)
	assert.Contains(t, c.published[1].payload, `"currency":"EUR"`)
}

func TestPublishUnknownCurrentPrice(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, slog.Default(), "spotprice")

	require.NoError(t, p.PublishSummary(query.DaySummary{Area: "EE"}))
	assert.Equal(t, "null", c.published[0].payload)
}

func TestPublishError(t *testing.T) {
	c := &fakeClient{publishErr: errors.New("not connected")}
	p := newPublisher(c, slog.Default(), "spotprice")

	err := p.PublishSummary(query.DaySummary{Area: "LV"})
	assert.ErrorContains(t, err, "spotprice/lv/current")
	assert.Len(t, c.published, 1)
}
