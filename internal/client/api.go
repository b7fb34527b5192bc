// Package client talks to the exam server on behalf of the terminal client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/session"
)

const requestTimeout = 15 * time.Second

// ErrAlreadySubmitted is returned when the server already holds a completed
// attempt for this student and exam. Retrying cannot succeed.
var ErrAlreadySubmitted = errors.New("exam already submitted")

// APIError is a structured error returned by the server.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("server returned %d %s", e.Status, e.Code)
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

// APIClient is a JSON client for the exam server's REST API.
type APIClient struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for the server at baseURL (scheme and host, no path).
func New(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Token returns the bearer token obtained by Login.
func (c *APIClient) Token() string { return c.token }

// BaseURL returns the server address.
func (c *APIClient) BaseURL() string { return c.baseURL }

// Login authenticates as a student and keeps the token for later calls.
func (c *APIClient) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{
		Email:    email,
		Password: password,
		Role:     model.RoleStudent,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// LookupExam fetches an exam by join code.
func (c *APIClient) LookupExam(ctx context.Context, code string) (*model.ExamForStudent, error) {
	var out model.ExamForStudent
	if err := c.do(ctx, http.MethodPost, "/api/v1/student/exams/lookup", model.LookupExamRequest{ExamCode: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAttempt sends a finished attempt for scoring.
func (c *APIClient) SubmitAttempt(ctx context.Context, req *model.SubmitAttemptRequest) (*model.SubmitAttemptResponse, error) {
	var out model.SubmitAttemptResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/student/attempts", req, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == response.ErrAttemptAlreadySubmitted {
			return nil, fmt.Errorf("%w: %s", ErrAlreadySubmitted, apiErr.Message)
		}
		return nil, err
	}
	return &out, nil
}

// Submit implements session.Submitter.
func (c *APIClient) Submit(ctx context.Context, s session.Submission) (*model.SubmitAttemptResponse, error) {
	return c.SubmitAttempt(ctx, &model.SubmitAttemptRequest{
		ExamID:         s.ExamID,
		StudentID:      s.StudentID,
		Answers:        s.Answers,
		ViolationCount: s.ViolationCount,
	})
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: response.ErrInternal}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode, Code: response.ErrInternal}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
