package server

import "encoding/json"

// HTTPError is the generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// CreateChatRequest creates a new conversation.
type CreateChatRequest struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	WorkflowPhase string `json:"workflow_phase,omitempty"`
}

// UpdatePhaseRequest advances a chat's workflow phase.
type UpdatePhaseRequest struct {
	WorkflowPhase string `json:"workflow_phase"`
}

// AddMessageRequest appends one transcript turn.
type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddDraftRequest stores a generated email draft.
type AddDraftRequest struct {
	Subject   string          `json:"subject,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Body      string          `json:"body"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// AddPlanRequest stores a generated action plan.
type AddPlanRequest struct {
	Title             string   `json:"title"`
	Checklist         []string `json:"checklist"`
	KeyConsiderations []string `json:"key_considerations,omitempty"`
}

// RecordEventRequest records one LLM-call observation.
type RecordEventRequest struct {
	Category         string  `json:"category"`
	AIMode           string  `json:"ai_mode"`
	LatencyMS        float64 `json:"latency_ms"`
	TokensUsed       int     `json:"tokens_used"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	ModelName        string  `json:"model_name"`
	Status           string  `json:"status"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// ActiveChatRequest marks a chat as the caller's active conversation.
type ActiveChatRequest struct {
	ChatID string `json:"chat_id"`
}

// ActiveChatResponse returns the caller's active conversation, if any.
type ActiveChatResponse struct {
	ChatID string `json:"chat_id,omitempty"`
}
