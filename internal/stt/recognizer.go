package stt

import (
	"log"

	"github.com/mugo2m/hugos-ai-interview/internal/interview"
)

// NewRecognizer probes the capture capability once at construction. Without a
// recognition key the environment cannot capture speech, so the simulated
// recognizer stands in and keeps demos and integration tests runnable.
func NewRecognizer(apiKey string) interview.Recognizer {
	if apiKey == "" {
		log.Printf("stt: no recognition key configured, speech input runs simulated")
		return NewSimulatedRecognizer()
	}
	return NewStreamRecognizer(apiKey)
}
