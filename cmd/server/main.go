package main

import (
	"os"

	"nova-ai/backend/internal/app"
)

// @title           Nova Chat API
// @version         1.0
// @description     Multi-session chat backend for the Gemini API with streaming responses, image generation and speech synthesis.
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
