package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0.42, "Exporting animation 42%"},
		{0, "Exporting animation 0%"},
		{1, "Exporting animation 100%"},
		{0.005, "Exporting animation 1%"},
		{0.994, "Exporting animation 99%"},
		{1.7, "Exporting animation 100%"},
		{-0.2, "Exporting animation 0%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatProgress(tt.fraction), "fraction %v", tt.fraction)
	}
}

func TestReadoutIsMonotonic(t *testing.T) {
	var r Readout
	assert.Equal(t, GeneratingText, r.String())

	p, changed := r.Update(0.42)
	assert.True(t, changed)
	assert.Equal(t, 42, p)
	assert.Equal(t, "Exporting animation 42%", r.String())

	p, changed = r.Update(0.30)
	assert.False(t, changed)
	assert.Equal(t, 42, p)
	assert.Equal(t, "Exporting animation 42%", r.String())

	_, changed = r.Update(0.421)
	assert.False(t, changed)

	r.Reset()
	assert.Equal(t, GeneratingText, r.String())
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Start()
	assert.Equal(t, GeneratingText, c.Text())
	c.Progress(0.42)
	c.Progress(0.42)
	c.Progress(0.1)
	c.Progress(1)
	c.Complete(Result{Output: "output/board.webm", Frames: 377})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[*] Generating animation", lines[0])
	assert.Equal(t, "[>] Exporting animation 42%", lines[1])
	assert.Equal(t, "[>] Exporting animation 100%", lines[2])
	assert.Contains(t, lines[3], "output/board.webm")
}

func TestConsoleFailure(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Complete(Result{Err: errors.New("model read aborted")})
	assert.Contains(t, buf.String(), "[!]")
	assert.Contains(t, buf.String(), "model read aborted")
}

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	retained bool
	msg      Message
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	var m Message
	if err := json.Unmarshal(payload.([]byte), &m); err != nil {
		panic(err)
	}
	p.sent = append(p.sent, published{topic: topic, retained: retained, msg: m})
	return &fakeToken{err: p.err}
}

func TestMQTT(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, "turntable/progress", zerolog.Nop())

	m.Start()
	m.Progress(0.42)
	m.Progress(0.40)
	m.Complete(Result{Output: "out.gif", Frames: 10})

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "turntable/progress", pub.sent[0].topic)
	assert.Equal(t, Message{State: StateGenerating}, pub.sent[0].msg)
	assert.Equal(t, Message{State: StateExporting, Percent: 42}, pub.sent[1].msg)
	assert.Equal(t, Message{State: StateDone, Percent: 100, Output: "out.gif"}, pub.sent[2].msg)
	assert.True(t, pub.sent[2].retained)
	assert.False(t, pub.sent[1].retained)
}

func TestMQTTFailureAndPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	m := NewMQTT(pub, "t", zerolog.Nop())

	m.Start()
	m.Progress(0.5)
	m.Complete(Result{Err: errors.New("ffmpeg wait error")})

	require.Len(t, pub.sent, 3)
	last := pub.sent[2].msg
	assert.Equal(t, StateFailed, last.State)
	assert.Equal(t, 50, last.Percent)
	assert.Equal(t, "ffmpeg wait error", last.Error)
}

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Start()              { r.calls = append(r.calls, "start") }
func (r *recordingNotifier) Progress(f float64)  { r.calls = append(r.calls, FormatProgress(f)) }
func (r *recordingNotifier) Complete(res Result) { r.calls = append(r.calls, "complete") }

func TestMulti(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	m := Multi{a, b}
	m.Start()
	m.Progress(0.42)
	m.Complete(Result{})

	want := []string{"start", "Exporting animation 42%", "complete"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
}
