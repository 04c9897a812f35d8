package handlers

import (
	"encoding/json"
	"net/http"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type regenerateRequest struct {
	ConversationID  string `json:"conversationId"`
	EditInstruction string `json:"editInstruction"`
}

type resumeRequest struct {
	ConversationID string `json:"conversationId"`
	JobHandle      string `json:"jobHandle"`
	Input          string `json:"input"`
}

type generateResponse struct {
	Schema         json.RawMessage `json:"schema"`
	ConversationID string          `json:"conversationId"`
	ResultID       *int64          `json:"resultId,omitempty"`
}

type regenerateResponse struct {
	Schema   json.RawMessage `json:"schema"`
	ResultID *int64          `json:"resultId,omitempty"`
}

type processingResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	JobHandle      string `json:"jobHandle"`
}

// Generate handles POST /generate.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	ctx, cancel := a.workContext(r)
	defer cancel()
	res, err := a.Generator.Generate(ctx, req.Prompt)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if res.Processing {
		a.processing(w, res)
		return
	}
	a.json(w, http.StatusOK, generateResponse{Schema: res.Schema, ConversationID: res.ConversationID, ResultID: res.ResultID})
}

// Regenerate handles POST /regenerate.
func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	ctx, cancel := a.workContext(r)
	defer cancel()
	res, err := a.Generator.Regenerate(ctx, req.ConversationID, req.EditInstruction)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if res.Processing {
		a.processing(w, res)
		return
	}
	a.json(w, http.StatusOK, regenerateResponse{Schema: res.Schema, ResultID: res.ResultID})
}

// ResumeJob handles POST /jobs/resume for runs previously answered with 202.
func (a *App) ResumeJob(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	ctx, cancel := a.workContext(r)
	defer cancel()
	res, err := a.Generator.Resume(ctx, req.ConversationID, req.JobHandle, req.Input)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if res.Processing {
		a.processing(w, res)
		return
	}
	a.json(w, http.StatusOK, generateResponse{Schema: res.Schema, ConversationID: res.ConversationID, ResultID: res.ResultID})
}
