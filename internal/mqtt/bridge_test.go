package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"xtherma_bridge/internal/config"
	"xtherma_bridge/internal/coordinator"
	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/types"
)

type fakeController struct {
	mu       sync.Mutex
	snap     *coordinator.Snapshot
	writes   map[string]float64
	writeErr error
}

func (f *fakeController) Snapshot() *coordinator.Snapshot { return f.snap }

func (f *fakeController) Lookup(key string) (registers.Descriptor, bool) {
	return registers.Modbus().Lookup(key)
}

func (f *fakeController) Write(ctx context.Context, key string, display float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.writes == nil {
		f.writes = make(map[string]float64)
	}
	f.writes[key] = display
	return nil
}

func (f *fakeController) AddListener(fn func()) func() { return func() {} }

type published struct {
	topic, payload string
	retained       bool
}

func newTestBridge(ctrl *fakeController) (*Bridge, *[]published) {
	b := newBridge(config.MQTTConfig{TopicPrefix: "xtherma", QoS: 1}, ctrl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out []published
	b.publish = func(topic, payload string, retained bool) error {
		out = append(out, published{topic, payload, retained})
		return nil
	}
	return b, &out
}

func TestTopics(t *testing.T) {
	tp := Topics{Prefix: "home/xtherma"}

	if got := tp.State("tvl"); got != "home/xtherma/state/tvl" {
		t.Errorf("State = %v, want home/xtherma/state/tvl", got)
	}
	if got := tp.SetWildcard(); got != "home/xtherma/set/+" {
		t.Errorf("SetWildcard = %v, want home/xtherma/set/+", got)
	}

	tests := []struct {
		topic string
		key   string
		ok    bool
	}{
		{"home/xtherma/set/411", "411", true},
		{"home/xtherma/set/Mode", "mode", true},
		{"home/xtherma/set/", "", false},
		{"home/xtherma/set/a/b", "", false},
		{"home/xtherma/state/411", "", false},
		{"other/set/411", "", false},
	}
	for _, tt := range tests {
		key, ok := tp.ParseSet(tt.topic)
		if key != tt.key || ok != tt.ok {
			t.Errorf("ParseSet(%q) = %q, %v, want %q, %v", tt.topic, key, ok, tt.key, tt.ok)
		}
	}
}

func TestPublishStateFormatsAndSkipsUnchanged(t *testing.T) {
	ctrl := &fakeController{snap: &coordinator.Snapshot{Values: map[string]float64{
		"tvl":     22.1,
		"002":     2,
		"001":     1,
		"unknown": 3.5,
	}}}
	b, out := newTestBridge(ctrl)

	b.publishState()

	got := make(map[string]string)
	for _, p := range *out {
		if !p.retained {
			t.Errorf("%s should be retained", p.topic)
		}
		got[p.topic] = p.payload
	}
	want := map[string]string{
		"xtherma/state/tvl":     "22.1",
		"xtherma/state/002":     registers.ModeOptions[2],
		"xtherma/state/001":     "on",
		"xtherma/state/unknown": "3.5",
	}
	for topic, payload := range want {
		if got[topic] != payload {
			t.Errorf("%s = %q, want %q", topic, got[topic], payload)
		}
	}

	// only changed values are sent again
	*out = nil
	ctrl.snap = &coordinator.Snapshot{Values: map[string]float64{
		"tvl": 22.4, "002": 2, "001": 1, "unknown": 3.5,
	}}
	b.publishState()
	if len(*out) != 1 || (*out)[0].topic != "xtherma/state/tvl" {
		t.Errorf("second publish = %+v, want only tvl", *out)
	}
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		topic   string
		payload string
		key     string
		want    float64
	}{
		{"xtherma/set/411", "-20", "411", -20},
		{"xtherma/set/002", "cooling", "002", 2},
		{"xtherma/set/001", "off", "001", 0},
		{"xtherma/set/001", "ON", "001", 1},
	}

	for _, tt := range tests {
		ctrl := &fakeController{}
		b, _ := newTestBridge(ctrl)
		if err := b.handleCommand(tt.topic, []byte(tt.payload)); err != nil {
			t.Errorf("handleCommand(%s, %s) error: %v", tt.topic, tt.payload, err)
			continue
		}
		if got := ctrl.writes[tt.key]; got != tt.want {
			t.Errorf("write %s = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestHandleCommandErrors(t *testing.T) {
	ctrl := &fakeController{}
	b, _ := newTestBridge(ctrl)

	if err := b.handleCommand("xtherma/set/", []byte("1")); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty key error = %v, want ErrInvalidTopic", err)
	}
	if err := b.handleCommand("xtherma/set/nope", []byte("1")); !errors.Is(err, coordinator.ErrUnknownKey) {
		t.Errorf("unknown key error = %v, want ErrUnknownKey", err)
	}
	if err := b.handleCommand("xtherma/set/411", []byte("warm")); err == nil {
		t.Error("unparseable payload should fail")
	}

	ctrl.writeErr = types.ErrBusy
	if err := b.handleCommand("xtherma/set/411", []byte("20")); !errors.Is(err, types.ErrBusy) {
		t.Errorf("write error = %v, want ErrBusy", err)
	}
}

func TestWrapHandlerRecoversPanic(t *testing.T) {
	b, _ := newTestBridge(&fakeController{})
	h := b.wrapHandler(func(string, []byte) error { panic("boom") })

	// must not panic
	h(nil, fakeMessage{topic: "xtherma/set/411"})
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{Broker: "tcp://broker:1883", ClientID: "bridge", Username: "u", Password: "p"}
	opts := buildClientOptions(cfg, Topics{Prefix: "xtherma"})

	if opts.Order {
		t.Error("Order = true, want handlers dispatched off the router goroutine")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if !opts.WillEnabled || opts.WillTopic != "xtherma/status" || string(opts.WillPayload) != PayloadOffline || !opts.WillRetained {
		t.Errorf("will = %v %q %q retained %v, want retained offline on xtherma/status",
			opts.WillEnabled, opts.WillTopic, opts.WillPayload, opts.WillRetained)
	}
	if opts.Username != "u" || opts.ClientID != "bridge" {
		t.Errorf("username, client id = %q, %q, want u, bridge", opts.Username, opts.ClientID)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}
