package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"eloquence-server-go/internal/domain/dialogue"
	"eloquence-server-go/internal/domain/emotion"
	"eloquence-server-go/internal/domain/feedback"
	"eloquence-server-go/internal/domain/llm"
	"eloquence-server-go/internal/domain/scenario"
	"eloquence-server-go/internal/domain/session"
	"eloquence-server-go/internal/domain/tts"
	"eloquence-server-go/internal/domain/vad"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/storage"
	"eloquence-server-go/internal/protocol"
	"eloquence-server-go/internal/transport/ws"
	"eloquence-server-go/internal/util"
)

// clientConn is the slice of the websocket connection the handler
// drives. ws.Connection satisfies it.
type clientConn interface {
	ReadMessage() (int, []byte, error)
	WriteText(data []byte) error
	WriteBinary(data []byte) error
	Close() error
	IsClosed() bool
	IsStale(timeout time.Duration) bool
}

// connHandler runs the conversation loop for one bound session.
type connHandler struct {
	o    *Orchestrator
	sess *session.Session
	conn clientConn
	gate *vad.Gate

	ctx    context.Context
	cancel context.CancelCauseFunc

	audioCh chan []byte

	streaming      atomic.Bool
	gentlePrompted atomic.Bool
	gentleActive   atomic.Bool
	closed         atomic.Bool
	turnIndex      atomic.Int32

	wg sync.WaitGroup
}

func newConnHandler(o *Orchestrator, sess *session.Session, conn clientConn) *connHandler {
	ctx, cancel := context.WithCancelCause(context.Background())
	detector := o.vadDetector(func(err error) {
		o.registry.Bus().Publish(session.TopicDegraded, sess.ID)
	})
	// The audio channel absorbs up to two seconds of 20ms frames
	// before the client counts as too slow.
	return &connHandler{
		o:       o,
		sess:    sess,
		conn:    conn,
		gate:    vad.NewGate(o.cfg.VAD, o.cfg.TTS.SampleRate, detector),
		ctx:     ctx,
		cancel:  cancel,
		audioCh: make(chan []byte, inboundBacklogMS/20),
	}
}

func (h *connHandler) GetSessionID() string {
	return h.sess.ID
}

// Handle runs the read loop until the connection dies or the session ends.
func (h *connHandler) Handle() {
	h.wg.Add(2)
	go h.audioLoop()
	go h.heartbeatLoop()

	for {
		messageType, payload, err := h.conn.ReadMessage()
		if err != nil {
			h.shutdown(errors.Wrap(errors.KindTransport, "ws.read", "connection lost", err))
			return
		}
		if h.closed.Load() {
			return
		}
		h.sess.Touch()

		switch messageType {
		case ws.BinaryMessage:
			h.onAudio(payload)
		case ws.TextMessage:
			h.onControl(payload)
		}
	}
}

// Close stops the handler and releases the session binding. The session
// itself survives for a later reconnect until deleted or expired.
func (h *connHandler) Close() {
	h.shutdown(ws.ErrSessionShutdown)
	h.wg.Wait()
}

func (h *connHandler) shutdown(cause error) {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.sess.Arbiter.Stop(cause)
	h.cancel(cause)
	_ = h.conn.Close()
	h.sess.Unbind()
	h.gate.Reset()
	h.o.logger.InfoTag("Session", "connection released for %s: %v", h.sess.ID, cause)
}

func (h *connHandler) onAudio(frame []byte) {
	if !h.streaming.Load() || h.closed.Load() {
		return
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)

	select {
	case h.audioCh <- buf:
	default:
		h.sendError(h.sess.Arbiter.Epoch(), errors.KindSlowConsumer, "audio backlog exceeded")
		h.shutdown(ws.ErrSlowConsumer)
	}
}

func (h *connHandler) onControl(payload []byte) {
	frame, err := protocol.Decode(payload)
	if err != nil {
		h.sendError(h.sess.Arbiter.Epoch(), errors.KindValidation, "malformed control frame")
		return
	}

	switch frame.Type {
	case protocol.TypeStartStream:
		h.gate.Reset()
		h.streaming.Store(true)
		h.gentlePrompted.Store(false)
		h.writeFrame(h.sess.Arbiter.Epoch(), protocol.NewFrame(protocol.TypeStreamStarted, h.sess.Arbiter.Epoch(), nil))
	case protocol.TypeStopStream:
		h.streaming.Store(false)
		h.gate.Reset()
	case protocol.TypeCancel:
		h.interrupt("client cancel")
	case protocol.TypeHeartbeat:
		// ReadMessage already refreshed the idle clock.
	default:
		h.sendError(h.sess.Arbiter.Epoch(), errors.KindValidation, "unexpected frame type "+frame.Type)
	}
}

func (h *connHandler) audioLoop() {
	defer h.wg.Done()

	for {
		var frame []byte
		select {
		case <-h.ctx.Done():
			return
		case frame = <-h.audioCh:
		}

		res, err := h.gate.Process(frame)
		if err != nil {
			h.o.logger.WarnTag("VAD", "frame scoring failed: %v", err)
			continue
		}

		switch res.Event {
		case vad.EventSpeechStart:
			h.onSpeechStart()
		case vad.EventSegment:
			turnCtx, epoch := h.sess.Arbiter.Begin(h.ctx, nil)
			segment := res.Segment
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.runTurn(turnCtx, epoch, segment)
			}()
		default:
			h.maybeGentlePrompt(res.IdleMS)
		}
	}
}

// onSpeechStart treats user speech over any agent output, including a
// playing gentle prompt, as barge-in.
func (h *connHandler) onSpeechStart() {
	h.gentlePrompted.Store(false)
	if h.sess.State() != session.StateListening || h.gentleActive.Load() {
		h.interrupt("barge-in")
	}
}

// interrupt cancels the running turn, advances the epoch and tells the
// client to stop playback immediately.
func (h *connHandler) interrupt(reason string) {
	epoch := h.sess.Arbiter.Interrupt(errors.New(errors.KindCancelled, "session.interrupt", reason))
	h.toListening()
	h.writeFrame(epoch, protocol.NewFrame(protocol.TypeTTSStop, epoch, nil))
	h.o.registry.Bus().Publish(session.TopicBargeIn, h.sess.ID)
	h.o.logger.InfoTag("Session", "%s interrupted (%s), epoch now %d", h.sess.ID, reason, epoch)
}

// maybeGentlePrompt nudges a silent user once per listening period.
func (h *connHandler) maybeGentlePrompt(idleMS int) {
	threshold := h.o.cfg.VAD.GentlePromptSilenceMS
	if threshold <= 0 || idleMS < threshold {
		return
	}
	if h.sess.State() != session.StateListening || h.sess.History.Len() == 0 {
		return
	}
	if !h.gentlePrompted.CompareAndSwap(false, true) {
		return
	}

	turnCtx, epoch := h.sess.Arbiter.Begin(h.ctx, nil)
	utterance := llm.Fallback(emotion.Neutral)
	h.gentleActive.Store(true)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.gentleActive.Store(false)
		h.writeFrame(epoch, protocol.Text(protocol.TypeAgentTextFinal, epoch, utterance))
		h.speakUnits(turnCtx, epoch, emotion.Neutral, []string{utterance})
	}()
}

func (h *connHandler) runTurn(turnCtx context.Context, epoch uint64, segment []byte) {
	if err := h.sess.SetState(session.StateProcessingASR); err != nil {
		return
	}

	transcript, ok := h.transcribe(turnCtx, epoch, segment)
	if !ok {
		h.toListening()
		return
	}
	h.writeFrame(epoch, protocol.Text(protocol.TypeASRFinal, epoch, transcript))

	if err := h.sess.SetState(session.StateProcessingLLM); err != nil {
		return
	}

	agentText, turnEmotion, ok := h.respond(turnCtx, epoch, transcript)
	if !ok {
		h.toListening()
		return
	}

	h.writeFrame(epoch, protocol.Text(protocol.TypeAgentTextFinal, epoch, agentText))
	h.writeFrame(epoch, protocol.Emotion(epoch, turnEmotion))

	h.finishTurn(transcript, agentText, turnEmotion, segment)
	h.toListening()
}

// transcribe runs ASR on the segment. A false return means the turn is
// over, silently for cancellations and undersized segments.
func (h *connHandler) transcribe(turnCtx context.Context, epoch uint64, segment []byte) (string, bool) {
	client, err := h.o.asrPool.Acquire(turnCtx)
	if err != nil {
		if !errors.IsKind(err, errors.KindCancelled) {
			h.sendError(epoch, errors.KindOf(err), "transcription unavailable")
		}
		return "", false
	}
	defer h.o.asrPool.Release(client)

	transcript, err := client.Transcribe(turnCtx, segment, h.sess.Lang())
	if err != nil {
		switch errors.KindOf(err) {
		case errors.KindCancelled:
		case errors.KindSegmentTooSmall:
			h.o.logger.DebugTag("ASR", "segment dropped: %v", err)
		default:
			h.sendError(epoch, errors.KindOf(err), "transcription failed")
		}
		return "", false
	}
	if strings.TrimSpace(transcript) == "" {
		return "", false
	}
	return transcript, true
}

// respond streams the agent reply, speaking completed units as they
// form. It returns the cleaned reply text and the turn emotion.
func (h *connHandler) respond(turnCtx context.Context, epoch uint64, transcript string) (string, string, bool) {
	client, err := h.o.llmPool.Acquire(turnCtx)
	if err != nil {
		h.sendError(epoch, errors.KindOf(err), "agent unavailable")
		return "", "", false
	}
	defer h.o.llmPool.Release(client)

	scenarioPrompt := ""
	if h.sess.Scenario != nil {
		if scenarioPrompt, err = h.o.scEngine.Prompt(h.sess.Scenario); err != nil {
			h.o.logger.WarnTag("Scenario", "prompt rendering failed: %v", err)
		}
	}

	deltas, errCh := client.Stream(turnCtx, llm.BuildMessages(llm.PromptInput{
		Persona:        h.sess.Agent.Persona,
		ScenarioPrompt: scenarioPrompt,
		History:        h.sess.History.Window(),
		UserText:       transcript,
	}))

	tagger := emotion.NewTagger()
	segmenter := tts.NewSegmenter()
	// The guard keeps the fenced updates block out of the visible and
	// spoken stream; full still accumulates everything for extraction.
	guard := scenario.NewFenceGuard()
	var full strings.Builder

	for delta := range deltas {
		cleaned := tagger.Feed(delta)
		if cleaned == "" {
			continue
		}
		full.WriteString(cleaned)
		visible := guard.Feed(cleaned)
		if visible == "" {
			continue
		}
		h.writeFrame(epoch, protocol.Text(protocol.TypeAgentTextPartial, epoch, visible))
		if !h.speakUnits(turnCtx, epoch, tagger.Label(), segmenter.Feed(visible)) {
			return "", "", false
		}
	}

	if err := <-errCh; err != nil {
		switch errors.KindOf(err) {
		case errors.KindCancelled:
			return "", "", false
		default:
			return h.fallback(turnCtx, epoch, err)
		}
	}

	if tail := tagger.Flush(); tail != "" {
		full.WriteString(tail)
		if visible := guard.Feed(tail); visible != "" {
			h.writeFrame(epoch, protocol.Text(protocol.TypeAgentTextPartial, epoch, visible))
			if !h.speakUnits(turnCtx, epoch, tagger.Label(), segmenter.Feed(visible)) {
				return "", "", false
			}
		}
	}
	if held := guard.Flush(); held != "" {
		h.writeFrame(epoch, protocol.Text(protocol.TypeAgentTextPartial, epoch, held))
		if !h.speakUnits(turnCtx, epoch, tagger.Label(), segmenter.Feed(held)) {
			return "", "", false
		}
	}
	if last := segmenter.Flush(); last != "" {
		if !h.speakUnits(turnCtx, epoch, tagger.Label(), []string{last}) {
			return "", "", false
		}
	}

	cleaned, updates := scenario.ExtractUpdates(strings.TrimSpace(full.String()))
	if updates != nil && h.sess.Scenario != nil {
		if err := h.o.scEngine.Apply(h.sess.Scenario, updates); err != nil {
			h.o.logger.WarnTag("Scenario", "update rejected for %s: %v", h.sess.ID, err)
		}
	}

	label := tagger.Resolve(cleaned)
	_, cleaned, _ = emotion.Extract(cleaned)
	return cleaned, label, true
}

// fallback plays a canned utterance when the model fails mid-turn.
func (h *connHandler) fallback(turnCtx context.Context, epoch uint64, cause error) (string, string, bool) {
	h.o.logger.WarnTag("LLM", "falling back for %s: %v", h.sess.ID, cause)

	utterance := llm.Fallback(emotion.Neutral)
	h.writeFrame(epoch, protocol.Text(protocol.TypeTTSFallback, epoch, utterance))
	if !h.speakUnits(turnCtx, epoch, emotion.Neutral, []string{utterance}) {
		return "", "", false
	}
	return utterance, emotion.Neutral, true
}

// speakUnits synthesizes and streams the units in order. A false return
// means the turn was interrupted or the transport failed.
func (h *connHandler) speakUnits(turnCtx context.Context, epoch uint64, label string, units []string) bool {
	if len(units) == 0 {
		return true
	}

	pipeline, err := h.o.ttsPool.Acquire(turnCtx)
	if err != nil {
		h.sendError(epoch, errors.KindOf(err), "synthesis unavailable")
		return false
	}
	defer h.o.ttsPool.Release(pipeline)

	if h.sess.State() == session.StateProcessingLLM {
		if err := h.sess.SetState(session.StateSpeaking); err != nil {
			return false
		}
	}

	language := h.sess.Lang()
	for _, unit := range units {
		err := pipeline.Speak(turnCtx, language, label, unit, func(seq int, frame []byte, last bool) error {
			if h.sess.Arbiter.Stale(epoch) {
				return errors.New(errors.KindCancelled, "tts.sink", "stale epoch")
			}
			h.writeFrame(epoch, protocol.TTSChunk(epoch, seq, last))
			return h.conn.WriteBinary(frame)
		})
		if err == nil {
			continue
		}
		switch errors.KindOf(err) {
		case errors.KindCancelled:
			return false
		case errors.KindTransport:
			h.shutdown(err)
			return false
		default:
			// One failed unit does not end the turn, the remaining
			// units still play.
			h.o.logger.WarnTag("TTS", "unit synthesis failed for %s: %v", h.sess.ID, err)
			h.writeFrame(epoch, protocol.Text(protocol.TypeTTSFallback, epoch, unit))
		}
	}
	return true
}

// finishTurn records the completed exchange everywhere it needs to live.
func (h *connHandler) finishTurn(transcript, agentText, turnEmotion string, segment []byte) {
	turn := int(h.turnIndex.Add(1))
	durationMS := util.PCMDurationMS(segment, h.o.cfg.TTS.SampleRate)

	h.sess.History.Append(dialogue.Turn{
		UserText:  transcript,
		AgentText: agentText,
		Emotion:   turnEmotion,
	})

	if h.o.sink != nil {
		err := h.o.sink.Submit(feedback.TurnRecord{
			SessionID:  h.sess.ID,
			TurnIndex:  turn,
			Transcript: transcript,
			AgentText:  agentText,
			Emotion:    turnEmotion,
			DurationMS: durationMS,
		}, segment)
		if err != nil {
			h.o.logger.WarnTag("Feedback", "submission failed for %s: %v", h.sess.ID, err)
		}
	}

	if h.o.store != nil {
		err := h.o.store.SaveTurn(storage.TurnRecord{
			SessionID:  h.sess.ID,
			TurnIndex:  turn,
			Transcript: transcript,
			AgentText:  agentText,
			Emotion:    turnEmotion,
			DurationMS: durationMS,
		})
		if err != nil {
			h.o.logger.WarnTag("Session", "turn persistence failed: %v", err)
		}
	}
}

func (h *connHandler) toListening() {
	if h.sess.State() == session.StateListening {
		return
	}
	if err := h.sess.SetState(session.StateListening); err != nil {
		h.o.logger.WarnTag("Session", "return to listening failed: %v", err)
	}
}

func (h *connHandler) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if h.conn.IsStale(h.o.cfg.Session.HeartbeatTimeout) {
				h.shutdown(ws.ErrIdleTimeout)
				return
			}
			epoch := h.sess.Arbiter.Epoch()
			h.writeFrame(epoch, protocol.NewFrame(protocol.TypeHeartbeat, epoch, nil))
		}
	}
}

// writeFrame drops frames from stale epochs and serializes the rest.
func (h *connHandler) writeFrame(epoch uint64, frame *protocol.Frame) {
	if h.sess.Arbiter.Stale(epoch) || h.conn.IsClosed() {
		return
	}
	data, err := protocol.Encode(frame)
	if err != nil {
		h.o.logger.ErrorTag("WebSocket", "frame encoding failed: %v", err)
		return
	}
	if err := h.conn.WriteText(data); err != nil && !h.closed.Load() {
		h.o.logger.WarnTag("WebSocket", "frame write failed for %s: %v", h.sess.ID, err)
	}
}

func (h *connHandler) sendError(epoch uint64, kind errors.Kind, message string) {
	h.writeFrame(epoch, protocol.ErrorFrame(epoch, string(kind), message))
}
