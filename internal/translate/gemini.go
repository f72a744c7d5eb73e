package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/linguaflow/lingua-core/internal/config"
)

type geminiProvider struct {
	client *genai.Client
	cfg    config.TranslatorConfig
	log    *slog.Logger
}

// NewGeminiProvider creates a Provider backed by the Gemini Live API.
func NewGeminiProvider(ctx context.Context, cfg config.TranslatorConfig, log *slog.Logger) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("translator api key is required for gemini mode")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiProvider{
		client: client,
		cfg:    cfg,
		log:    log.With(slog.String("component", "gemini-provider")),
	}, nil
}

func (p *geminiProvider) Connect(ctx context.Context, sc SessionConfig) (Conn, error) {
	live, err := p.client.Live.Connect(ctx, p.cfg.Model, p.liveConfig(sc))
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}
	p.log.Debug("live session connected",
		slog.String("language", sc.Language),
		slog.String("gender", sc.Gender))
	return &geminiConn{live: live}, nil
}

// liveConfig builds the provider-facing session configuration: audio response
// modality, locale and voice resolved with fallbacks, the fixed translator
// system instruction, and a sliding context window so long sessions do not
// accumulate unbounded server-side state.
func (p *geminiProvider) liveConfig(sc SessionConfig) *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		MediaResolution:    genai.MediaResolutionMedium,
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: LocaleFor(sc.Language),
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: VoiceFor(sc.Gender),
				},
			},
		},
		SystemInstruction: &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: SystemInstruction(sc.Language)}},
		},
		ContextWindowCompression: &genai.ContextWindowCompressionConfig{
			TriggerTokens: genai.Ptr(p.cfg.TriggerTokens),
			SlidingWindow: &genai.SlidingWindow{
				TargetTokens: genai.Ptr(p.cfg.TargetTokens),
			},
		},
	}
}

// liveSession is the slice of *genai.Session the connection uses, narrowed so
// the error paths can be exercised with a fake.
type liveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type geminiConn struct {
	live      liveSession
	closeOnce sync.Once
	closeErr  error
}

func (c *geminiConn) Send(frame Frame) error {
	if err := c.live.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: frame.Data, MIMEType: frame.MIME},
	}); err != nil {
		return fmt.Errorf("send realtime input: %w", err)
	}
	return nil
}

func (c *geminiConn) Receive() (Event, error) {
	msg, err := c.live.Receive()
	if err != nil {
		return Event{}, err
	}
	var ev Event
	sc := msg.ServerContent
	if sc == nil {
		return ev, nil
	}
	if sc.ModelTurn != nil {
		var text strings.Builder
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ev.Audio = append(ev.Audio, part.InlineData.Data...)
			}
		}
		ev.Text = text.String()
	}
	ev.TurnComplete = sc.TurnComplete
	return ev, nil
}

func (c *geminiConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.live.Close()
	})
	return c.closeErr
}
