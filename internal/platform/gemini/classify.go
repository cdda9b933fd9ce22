package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ModelResponse is the classified form of a model response envelope. It is
// one of Ok, Empty, SafetyBlocked or RecitationBlocked.
type ModelResponse interface {
	isModelResponse()
}

// Ok carries the text of the first candidate.
type Ok struct {
	Text string
}

// Empty means the envelope carried nothing usable.
type Empty struct {
	Reason string
}

// SafetyBlocked means the prompt or the output was blocked by a content policy.
type SafetyBlocked struct {
	Detail string
}

// RecitationBlocked means the output was stopped for reproducing source material.
type RecitationBlocked struct {
	Detail string
}

func (Ok) isModelResponse()                {}
func (Empty) isModelResponse()             {}
func (SafetyBlocked) isModelResponse()     {}
func (RecitationBlocked) isModelResponse() {}

// Classify inspects a response envelope before its payload is trusted.
func Classify(resp *genai.GenerateContentResponse) ModelResponse {
	if resp == nil {
		return Empty{Reason: "no response"}
	}

	if fb := resp.PromptFeedback; fb != nil {
		switch fb.BlockReason {
		case genai.BlockedReasonSafety, genai.BlockedReasonBlocklist, genai.BlockedReasonProhibitedContent:
			return SafetyBlocked{Detail: fmt.Sprintf("prompt blocked: %s", fb.BlockReason)}
		case "", genai.BlockedReasonUnspecified:
		default:
			if len(resp.Candidates) == 0 {
				return Empty{Reason: fmt.Sprintf("prompt blocked: %s", fb.BlockReason)}
			}
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return Empty{Reason: "no candidates"}
	}
	cand := resp.Candidates[0]

	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return SafetyBlocked{Detail: safetyDetail(cand)}
	case genai.FinishReasonRecitation:
		return RecitationBlocked{Detail: "output stopped by the recitation policy"}
	}

	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return Empty{Reason: fmt.Sprintf("candidate has no content (finish reason %q)", cand.FinishReason)}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return Empty{Reason: "candidate has no text"}
	}
	return Ok{Text: text}
}

func safetyDetail(cand *genai.Candidate) string {
	var blocked []string
	for _, r := range cand.SafetyRatings {
		if r != nil && r.Blocked {
			blocked = append(blocked, string(r.Category))
		}
	}
	if len(blocked) == 0 {
		return fmt.Sprintf("output blocked: %s", cand.FinishReason)
	}
	return fmt.Sprintf("output blocked: %s (%s)", cand.FinishReason, strings.Join(blocked, ", "))
}
