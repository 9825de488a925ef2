package library

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Submission describes a memoir handed over to the library once a defense is finalized.
type Submission struct {
	CandidateID string `json:"candidate_id"`
	DocumentRef string `json:"document_ref"`
	VerdictID   string `json:"verdict_id"`
	Mention     string `json:"mention"`
	Active      bool   `json:"active"`
}

// Receipt is what the library acknowledges for a submission.
type Receipt struct {
	ExternalID string
	Status     string
}

// Client talks to the publication service over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient builds a library client. baseURL must be non-empty.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("library base url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		rc.SetAuthToken(apiKey)
	}
	return &Client{http: rc}, nil
}

// SubmitDocument posts the document and returns the library's receipt. The call is
// idempotent on the library side: resubmitting the same document returns the existing record.
func (c *Client) SubmitDocument(ctx context.Context, sub Submission) (*Receipt, error) {
	if sub.CandidateID == "" || sub.DocumentRef == "" {
		return nil, fmt.Errorf("candidate id and document ref are required")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", sub.VerdictID+":"+sub.DocumentRef).
		SetBody(sub).
		Post("/documents")
	if err != nil {
		return nil, fmt.Errorf("submit document: %w", err)
	}
	body := resp.String()
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		msg := gjson.Get(body, "error.message").String()
		if msg == "" {
			msg = gjson.Get(body, "message").String()
		}
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("library rejected document %s: %s", sub.DocumentRef, msg)
	}

	receipt := &Receipt{
		ExternalID: gjson.Get(body, "data.id").String(),
		Status:     gjson.Get(body, "data.status").String(),
	}
	if receipt.ExternalID == "" {
		receipt.ExternalID = gjson.Get(body, "id").String()
	}
	if receipt.ExternalID == "" {
		return nil, fmt.Errorf("library response missing document id")
	}
	if receipt.Status == "" {
		receipt.Status = "RECEIVED"
	}
	return receipt, nil
}
