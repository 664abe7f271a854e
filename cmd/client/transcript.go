package main

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/speech/apiv1/speechpb"
	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"google.golang.org/protobuf/encoding/protojson"
)

var unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

// finalTranscripts extracts the final transcripts carried by one relay
// message. Deepgram results and Google Speech responses are understood;
// anything else yields nothing.
func finalTranscripts(data []byte) []string {
	var msg api.MessageResponse
	if err := json.Unmarshal(data, &msg); err == nil && len(msg.Channel.Alternatives) > 0 {
		if !msg.IsFinal {
			return nil
		}
		if sentence := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript); sentence != "" {
			return []string{sentence}
		}
		return nil
	}

	var resp speechpb.StreamingRecognizeResponse
	if err := unmarshalOptions.Unmarshal(data, &resp); err != nil {
		return nil
	}

	var sentences []string
	for _, result := range resp.GetResults() {
		if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
			continue
		}
		if sentence := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript()); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}
