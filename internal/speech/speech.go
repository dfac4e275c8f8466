// Package speech bridges the chat flow to remote speech-to-text and
// text-to-speech endpoints. Failures are returned to the caller, which
// decides the fallback: typed text for a failed transcription, text-only
// display for a failed synthesis.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

type Bridge interface {
	// Transcribe converts captured audio to plain text. filename carries the
	// container format hint (extension) required by the endpoint.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	// Synthesize converts response text to a playable audio payload (MP3).
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAIBridge uses the OpenAI-compatible audio endpoints (Whisper for
// transcription, the speech API for synthesis).
type OpenAIBridge struct {
	client          *openai.Client
	transcribeModel string
	ttsModel        string
	voice           string
}

func NewOpenAIBridge(apiKey, baseURL, transcribeModel, ttsModel, voice string) *OpenAIBridge {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIBridge{
		client:          openai.NewClientWithConfig(config),
		transcribeModel: transcribeModel,
		ttsModel:        ttsModel,
		voice:           voice,
	}
}

func (b *OpenAIBridge) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.transcribeModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

func (b *OpenAIBridge) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := b.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(b.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(b.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return audio, nil
}
