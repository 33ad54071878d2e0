package entity

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPromptPrefix is prepended to the content before it is sent to the backend.
const DefaultPromptPrefix = "Summarize the following text:\n"

type SummaryRequest struct {
	Module  string `json:"module"`
	Content string `json:"content"`
}

func NewSummaryRequest(module, content string) *SummaryRequest {
	return &SummaryRequest{
		Module:  module,
		Content: content,
	}
}

// Validate reports an *InvalidInputError when module or content is blank.
func (r *SummaryRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Module) == "" {
		missing = append(missing, "module")
	}
	if strings.TrimSpace(r.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) == 0 {
		return nil
	}

	return &InvalidInputError{
		Fields:  missing,
		Message: fmt.Sprintf("please provide a non-empty %s", strings.Join(missing, " and ")),
	}
}

// GenerateRequest is the body posted to the generation backend.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func NewGenerateRequest(prefix string, req *SummaryRequest) *GenerateRequest {
	return &GenerateRequest{
		Model:  req.Module,
		Prompt: prefix + req.Content,
	}
}

type Summary struct {
	Module   string
	Elapsed  time.Duration
	Response string
}

func NewSummary(module string, elapsed time.Duration, response string) *Summary {
	if elapsed < 0 {
		elapsed = 0
	}
	return &Summary{
		Module:   module,
		Elapsed:  elapsed,
		Response: response,
	}
}

// ElapsedText renders the elapsed time as whole milliseconds, e.g. "1532ms".
func (s *Summary) ElapsedText() string {
	return fmt.Sprintf("%dms", s.Elapsed.Milliseconds())
}
