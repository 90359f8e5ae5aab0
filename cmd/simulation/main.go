package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api/conversation/v1"

// Simplified DTOs for the script
type StartResponse struct {
	Data struct {
		SessionID string `json:"session_id"`
		Step      string `json:"step"`
	} `json:"data"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

type SendMessageResponse struct {
	Data struct {
		Step    string `json:"step"`
		Replies []struct {
			Content string `json:"content"`
		} `json:"replies"`
		Analysis *struct {
			DisplayMode string `json:"display_mode"`
			Message     string `json:"message"`
		} `json:"analysis"`
	} `json:"data"`
}

var (
	userColor  = color.New(color.FgCyan, color.Bold)
	aiColor    = color.New(color.FgGreen)
	stepColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

func main() {
	fmt.Println("=== Instrument Advisor Simulation Client ===")

	sessionID, err := startConversation()
	if err != nil {
		log.Fatalf("Failed to start conversation: %v", err)
	}
	fmt.Printf("Session Created: %s\n", sessionID)

	// Scripted walk through the full advisory flow.
	script := []string{
		"Hello!",
		"I need a pressure transmitter for a steam line, range 0 to 10 bar, flange connection DN50",
		"yes",
		"I'd also like a stainless steel housing with HART output",
		"show me the summary",
		"yes, run the analysis",
	}

	for _, text := range script {
		fmt.Println()
		userColor.Printf("USER: ")
		fmt.Println(text)

		start := time.Now()
		res, err := sendMessage(sessionID, text)
		elapsed := time.Since(start)

		if err != nil {
			errorColor.Printf("Error: %v\n", err)
			continue
		}

		for _, r := range res.Data.Replies {
			aiColor.Printf("AI (%v): ", elapsed.Round(time.Millisecond))
			fmt.Println(r.Content)
		}
		stepColor.Printf("[step: %s]\n", res.Data.Step)
		if res.Data.Analysis != nil {
			stepColor.Printf("[analysis: %s mode, %s]\n", res.Data.Analysis.DisplayMode, res.Data.Analysis.Message)
		}

		time.Sleep(500 * time.Millisecond)
	}
}

func startConversation() (string, error) {
	resp, err := http.Post(baseURL, "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res StartResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res.Data.SessionID, nil
}

func sendMessage(sessionID, text string) (*SendMessageResponse, error) {
	jsonBytes, _ := json.Marshal(SendMessageRequest{Message: text})

	resp, err := http.Post(baseURL+"/"+sessionID+"/message", "application/json", bytes.NewBuffer(jsonBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
