package vad

import (
	"encoding/binary"
	"testing"

	"eloquence-server-go/internal/platform/config"
)

const testSampleRate = 16000

// 20ms frames at 16kHz mono PCM16.
func loudFrame() []byte {
	buf := make([]byte, 640)
	for i := 0; i < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(16384)))
	}
	return buf
}

func quietFrame() []byte {
	return make([]byte, 640)
}

func testGate() *Gate {
	cfg := config.VADConfig{
		Threshold:            0.45,
		MinSilenceDurationMS: 100,
		SpeechPadMS:          40,
	}
	return NewGate(cfg, testSampleRate, nil)
}

func feed(t *testing.T, g *Gate, frame []byte) Result {
	t.Helper()
	res, err := g.Process(frame)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return res
}

func TestSpeechStartNeedsConsecutiveFrames(t *testing.T) {
	g := testGate()

	if res := feed(t, g, loudFrame()); res.Event != EventNone {
		t.Fatalf("one loud frame must not open an utterance")
	}
	// A quiet frame resets the streak.
	feed(t, g, quietFrame())
	if res := feed(t, g, loudFrame()); res.Event != EventNone {
		t.Fatalf("streak should have been reset by silence")
	}
	if res := feed(t, g, loudFrame()); res.Event != EventSpeechStart {
		t.Fatalf("two consecutive loud frames should open an utterance, got %v", res.Event)
	}
	if !g.InSpeech() {
		t.Fatalf("gate should report an open utterance")
	}
}

func TestSegmentClosesAfterMinSilence(t *testing.T) {
	g := testGate()

	feed(t, g, loudFrame())
	feed(t, g, loudFrame())
	feed(t, g, loudFrame())

	var segment []byte
	for i := 0; i < 5; i++ {
		res := feed(t, g, quietFrame())
		if i < 4 {
			if res.Event != EventNone {
				t.Fatalf("segment closed too early at silence frame %d", i)
			}
			continue
		}
		if res.Event != EventSegment {
			t.Fatalf("expected segment close at 100ms of silence")
		}
		segment = res.Segment
	}

	// Pad (40ms) + one in-speech loud frame + five silence frames.
	want := 1280 + 640 + 5*640
	if len(segment) != want {
		t.Fatalf("segment length %d, want %d", len(segment), want)
	}
	if g.InSpeech() {
		t.Fatalf("gate should be idle after segment close")
	}
}

func TestPadCapturesOnset(t *testing.T) {
	g := testGate()

	// Idle audio beyond the pad window.
	for i := 0; i < 4; i++ {
		feed(t, g, quietFrame())
	}
	feed(t, g, loudFrame())
	res := feed(t, g, loudFrame())
	if res.Event != EventSpeechStart {
		t.Fatalf("expected speech start")
	}

	for i := 0; i < 5; i++ {
		res = feed(t, g, quietFrame())
	}
	// Pad holds exactly the last 40ms before confirmation, which are
	// the two triggering loud frames.
	want := 1280 + 5*640
	if len(res.Segment) != want {
		t.Fatalf("segment length %d, want %d", len(res.Segment), want)
	}
	if binary.LittleEndian.Uint16(res.Segment[0:2]) == 0 {
		t.Fatalf("segment should open with the padded speech onset")
	}
}

func TestIdleAccumulatesOutsideSpeech(t *testing.T) {
	g := testGate()
	var res Result
	for i := 0; i < 3; i++ {
		res = feed(t, g, quietFrame())
	}
	if res.IdleMS != 60 {
		t.Fatalf("expected 60ms idle, got %d", res.IdleMS)
	}
}

func TestResetDropsOpenUtterance(t *testing.T) {
	g := testGate()
	feed(t, g, loudFrame())
	feed(t, g, loudFrame())
	g.Reset()
	if g.InSpeech() {
		t.Fatalf("reset should close the utterance")
	}
	res := feed(t, g, quietFrame())
	if res.Event != EventNone || res.IdleMS != 20 {
		t.Fatalf("gate should behave as fresh after reset")
	}
}
