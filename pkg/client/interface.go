package client

import "context"

// VisionClient sends a prompt plus one image to a vision model and returns its text answer
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error)
}
