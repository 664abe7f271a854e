package main

import (
	"context"
	"fmt"

	"github.com/agnivade/stt_relay/config"
	"github.com/agnivade/stt_relay/remote"
	"github.com/agnivade/stt_relay/remote/deepgram"
	"github.com/agnivade/stt_relay/remote/google"
)

// newFactory builds the remote factory for the configured backend. The
// returned cleanup releases backend clients and must always be called.
func newFactory(ctx context.Context, cfg *config.RemoteConfig) (remote.Factory, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendDeepgram:
		f, err := deepgram.NewFactory(deepgramOptions(cfg))
		return f, noop, err
	case config.BackendDeepgramSDK:
		f, err := deepgram.NewSDKFactory(deepgramOptions(cfg))
		return f, noop, err
	case config.BackendGoogle:
		client, err := google.NewClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create speech client: %w", err)
		}
		language := cfg.Language
		if language == "" {
			language = "en-US"
		}
		f, err := google.NewFactory(client, google.Config{
			Encoding:       cfg.Encoding,
			SampleRate:     cfg.SampleRate,
			LanguageCode:   language,
			InterimResults: cfg.InterimResults,
		})
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return f, func() { client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func deepgramOptions(cfg *config.RemoteConfig) deepgram.Options {
	return deepgram.Options{
		URL:              cfg.URL,
		APIKey:           cfg.APIKey,
		Model:            cfg.Model,
		Language:         cfg.Language,
		Encoding:         cfg.Encoding,
		SampleRate:       cfg.SampleRate,
		Channels:         cfg.Channels,
		Punctuate:        cfg.Punctuate,
		InterimResults:   cfg.InterimResults,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
}
