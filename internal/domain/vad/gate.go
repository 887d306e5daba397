package vad

import (
	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/util"
)

// Gate turns per-frame speech probabilities into utterance boundaries.
// Entry needs ConsecutiveSpeechFrames frames above the threshold, exit
// needs MinSilenceDurationMS of continuous silence. A ring of the last
// SpeechPadMS milliseconds is prepended to each utterance so the first
// syllable survives the detection latency.
type Gate struct {
	detector   Detector
	threshold  float64
	minSilence int
	padMS      int
	needFrames int
	sampleRate int

	inSpeech     bool
	consecSpeech int
	silenceMS    int
	idleMS       int

	pad     []byte
	padCap  int
	segment []byte
}

// NewGate builds a gate from VAD configuration. A nil detector falls
// back to energy scoring.
func NewGate(cfg config.VADConfig, sampleRate int, detector Detector) *Gate {
	if detector == nil {
		detector = NewEnergyDetector()
	}
	needFrames := 2
	return &Gate{
		detector:   detector,
		threshold:  cfg.Threshold,
		minSilence: cfg.MinSilenceDurationMS,
		padMS:      cfg.SpeechPadMS,
		needFrames: needFrames,
		sampleRate: sampleRate,
		padCap:     util.PCM16BytesPerMS(sampleRate) * cfg.SpeechPadMS,
	}
}

// Process feeds one inbound PCM frame through the gate.
func (g *Gate) Process(frame []byte) (Result, error) {
	prob, err := g.detector.Probability(frame)
	if err != nil {
		return Result{}, err
	}

	frameMS := util.PCMDurationMS(frame, g.sampleRate)
	speech := prob >= g.threshold

	res := Result{Probability: prob}

	if !g.inSpeech {
		g.appendPad(frame)
		if speech {
			g.consecSpeech++
			if g.consecSpeech >= g.needFrames {
				g.inSpeech = true
				g.consecSpeech = 0
				g.idleMS = 0
				g.silenceMS = 0
				g.segment = append(g.segment[:0], g.pad...)
				res.Event = EventSpeechStart
			}
		} else {
			g.consecSpeech = 0
			g.idleMS += frameMS
		}
		res.IdleMS = g.idleMS
		return res, nil
	}

	g.segment = append(g.segment, frame...)
	if speech {
		g.silenceMS = 0
	} else {
		g.silenceMS += frameMS
		if g.silenceMS >= g.minSilence {
			res.Event = EventSegment
			res.Segment = g.closeSegment()
		}
	}
	res.SilenceMS = g.silenceMS
	return res, nil
}

// InSpeech reports whether an utterance is currently open.
func (g *Gate) InSpeech() bool {
	return g.inSpeech
}

// Reset discards all state, including any open utterance.
func (g *Gate) Reset() {
	g.inSpeech = false
	g.consecSpeech = 0
	g.silenceMS = 0
	g.idleMS = 0
	g.pad = g.pad[:0]
	g.segment = g.segment[:0]
	g.detector.Reset()
}

func (g *Gate) closeSegment() []byte {
	out := make([]byte, len(g.segment))
	copy(out, g.segment)

	g.inSpeech = false
	g.silenceMS = 0
	g.idleMS = 0
	g.segment = g.segment[:0]
	g.pad = g.pad[:0]
	return out
}

func (g *Gate) appendPad(frame []byte) {
	if g.padCap <= 0 {
		return
	}
	g.pad = append(g.pad, frame...)
	if excess := len(g.pad) - g.padCap; excess > 0 {
		// Keep sample alignment when trimming.
		if excess%2 != 0 {
			excess++
		}
		g.pad = g.pad[excess:]
	}
}
