package dialogue

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/atomicfile"
	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/book-expert/voicebatch/internal/subtitle"
	"github.com/book-expert/voicebatch/internal/textnorm"
	"github.com/book-expert/voicebatch/internal/transcription"
	"github.com/spf13/afero"
)

const (
	voiceDir        = "voice"
	subtitleDir     = "srt"
	filePermissions = 0o644

	// subtitleGap separates consecutive clips on the shared subtitle timeline.
	subtitleGap = 0.2
)

// Turn is one script line at its position in the script.
type Turn struct {
	Index   int    `json:"index"`
	AgentID string `json:"agentId"`
	Text    string `json:"text"`

	speakerRef string
}

// Clip is the synthesized audio of one turn.
type Clip struct {
	Path          string  `json:"path"`
	Bytes         int     `json:"bytes"`
	Duration      float64 `json:"duration,omitempty"`
	ObjectKey     string  `json:"objectKey,omitempty"`
	Subtitles     string  `json:"subtitles,omitempty"`
	SubtitleError string  `json:"subtitleError,omitempty"`
}

// Result is the ordered per-turn outcome of one script.
type Result = batch.Result[Turn, *Clip]

// Settings control output placement and synthesis.
type Settings struct {
	OutputDir   string
	Language    string
	ItemTimeout time.Duration
	Subtitles   bool
}

// Deps are the collaborators of a Service. Store, Transcriber and Normalizer are optional.
type Deps struct {
	Fs          afero.Fs
	Registry    *Registry
	Speakers    *gate.Gate
	Synthesizer core.Synthesizer
	Store       core.ObjectStore
	Transcriber *transcription.Service
	Normalizer  *textnorm.Normalizer
}

// Service synthesizes scripts.
type Service struct {
	deps     Deps
	settings Settings
	log      *logger.Logger
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New creates a Service.
func New(deps Deps, settings Settings, log *logger.Logger) *Service {
	return &Service{deps: deps, settings: settings, log: log}
}

// Synthesize renders every line to <out>/voice/<AGENT>-<index>.wav. A failed
// line does not stop the script.
func (s *Service) Synthesize(ctx context.Context, lines []Line, observer batch.Observer) (*Result, error) {
	turns := make([]Turn, len(lines))
	for i, line := range lines {
		turns[i] = Turn{Index: i, AgentID: line.AgentID, Text: line.Text}
	}

	processor := batch.New(
		s.resolveSpeaker,
		s.acquire,
		s.log,
		batch.Settings{ItemTimeout: s.settings.ItemTimeout, Observer: observer},
	)

	result, err := processor.Run(ctx, turns)
	if err != nil {
		return nil, err
	}

	if s.settings.Subtitles && s.deps.Transcriber != nil {
		s.writeSubtitles(ctx, result)
	}

	return result, nil
}

func (s *Service) resolveSpeaker(turn Turn) (Turn, error) {
	if !ValidAgentID(turn.AgentID) {
		return turn, fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrInvalidAgentID, turn.AgentID)
	}

	reference, err := s.deps.Registry.Reference(turn.AgentID)
	if err != nil {
		return turn, err
	}

	resolved, err := s.deps.Speakers.Resolve(reference)
	if err != nil {
		return turn, err
	}

	turn.speakerRef = resolved

	return turn, nil
}

func (s *Service) acquire(ctx context.Context) (batch.Handle[Turn, *Clip], error) {
	checker, ok := s.deps.Synthesizer.(healthChecker)
	if ok {
		err := checker.HealthCheck(ctx)
		if err != nil {
			return nil, fmt.Errorf("synthesis service unavailable: %w", err)
		}
	}

	return &synthesisHandle{service: s}, nil
}

func (s *Service) clipPath(dir string, turn Turn, ext string) string {
	return filepath.Join(s.settings.OutputDir, dir, fmt.Sprintf("%s-%d%s", turn.AgentID, turn.Index, ext))
}

type synthesisHandle struct {
	service *Service
}

func (h *synthesisHandle) Invoke(ctx context.Context, turn Turn) (*Clip, error) {
	s := h.service

	text := turn.Text
	if s.deps.Normalizer != nil {
		text = s.deps.Normalizer.Normalize(text, s.settings.Language)
	}

	audio, err := s.deps.Synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:           text,
		SpeakerRefPath: turn.speakerRef,
		Language:       s.settings.Language,
	})
	if err != nil {
		return nil, err
	}

	path := s.clipPath(voiceDir, turn, ".wav")

	err = atomicfile.Write(s.deps.Fs, path, audio, filePermissions)
	if err != nil {
		return nil, err
	}

	clip := &Clip{Path: path, Bytes: len(audio), Duration: wavDuration(audio)}

	if s.deps.Store != nil {
		batchID, _ := batch.IDFromContext(ctx)
		key := batchID + "/" + filepath.Base(path)

		err = s.deps.Store.Upload(ctx, key, audio)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", key, err)
		}

		clip.ObjectKey = key
	}

	s.log.Info("Generated audio: %s (%d bytes)", path, len(audio))

	return clip, nil
}

func (h *synthesisHandle) Release() error {
	return nil
}

// writeSubtitles transcribes the successful clips and lays their words out on
// one timeline, each clip starting after the previous one plus subtitleGap.
func (s *Service) writeSubtitles(ctx context.Context, result *Result) {
	var (
		refs  []string
		turns []Turn
		clips []*Clip
	)

	for _, entry := range result.Entries {
		if !entry.Outcome.OK() {
			continue
		}

		rel, err := filepath.Rel(s.settings.OutputDir, entry.Outcome.Value.Path)
		if err != nil {
			entry.Outcome.Value.SubtitleError = err.Error()

			continue
		}

		refs = append(refs, rel)
		turns = append(turns, entry.Item)
		clips = append(clips, entry.Outcome.Value)
	}

	if len(refs) == 0 {
		return
	}

	transcriber := s.deps.Transcriber.WithGate(gate.New(s.deps.Fs, s.settings.OutputDir))

	transcripts, err := transcriber.Transcribe(ctx, refs, nil)
	if err != nil {
		s.log.Error("Failed to transcribe dialogue for subtitles: %v", err)

		for _, clip := range clips {
			clip.SubtitleError = err.Error()
		}

		return
	}

	offset := 0.0

	for i, entry := range transcripts.Entries {
		clip := clips[i]
		duration := clip.Duration

		if entry.Outcome.OK() {
			if duration == 0 {
				duration = entry.Outcome.Value.SpokenDuration()
			}

			s.writeSubtitle(clip, turns[i], entry.Outcome.Value, offset)
		} else {
			clip.SubtitleError = entry.Outcome.Failure.Message
		}

		offset += duration + subtitleGap
	}
}

func (s *Service) writeSubtitle(clip *Clip, turn Turn, transcript *core.Transcript, offset float64) {
	path := s.clipPath(subtitleDir, turn, ".srt")
	cues := subtitle.FromWords(transcript.Words(), offset)

	err := atomicfile.Write(s.deps.Fs, path, []byte(subtitle.Render(cues)), filePermissions)
	if err != nil {
		s.log.Error("Failed to write subtitles %s: %v", path, err)
		clip.SubtitleError = err.Error()

		return
	}

	clip.Subtitles = path
}
