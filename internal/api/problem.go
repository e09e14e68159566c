package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Problem is the decoded error body of a 4xx/5xx response. The backend
// answers in the NestJS shape {statusCode, message, error} where message
// is a string or a list of validation messages; RFC 7807 documents
// {type, title, status, detail} are accepted too.
type Problem struct {
	Status   int      `json:"status"`
	Type     string   `json:"type,omitempty"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

func (p *Problem) String() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

type problemBody struct {
	// NestJS
	StatusCode int             `json:"statusCode"`
	Message    json.RawMessage `json:"message"`
	Error      string          `json:"error"`
	// RFC 7807
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// DecodeProblem builds a Problem from an error response body. Bodies that
// are not JSON fall back to the status text with the trimmed body as
// detail.
func DecodeProblem(status int, data []byte) *Problem {
	p := &Problem{Status: status, Title: http.StatusText(status)}

	var b problemBody
	if err := json.Unmarshal(data, &b); err != nil {
		if text := strings.TrimSpace(string(data)); text != "" && len(text) <= 512 {
			p.Detail = text
		}
		return p
	}

	p.Type = b.Type
	switch {
	case b.Title != "":
		p.Title = b.Title
	case b.Error != "":
		p.Title = b.Error
	}
	p.Detail = b.Detail

	if len(b.Message) > 0 {
		var one string
		var many []string
		switch {
		case json.Unmarshal(b.Message, &one) == nil:
			p.Messages = []string{one}
		case json.Unmarshal(b.Message, &many) == nil:
			p.Messages = many
		}
	}
	if p.Detail == "" && len(p.Messages) > 0 {
		p.Detail = strings.Join(p.Messages, "; ")
	}
	return p
}
