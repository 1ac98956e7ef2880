// Package cfnresponse reports custom resource results to CloudFormation.
package cfnresponse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"go.uber.org/zap"

	"github.com/firecamp/redis-cfn-resource/internal/domain"
)

// PhysicalResourceIDPrefix prefixes the logical id to form the physical id.
const PhysicalResourceIDPrefix = "redis-"

// Sender uploads the response document to the pre-signed ResponseURL.
type Sender struct {
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a Sender.
func New(httpClient *http.Client, timeout time.Duration) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Sender{httpClient: httpClient, timeout: timeout}
}

// Build returns the response document for event.
func Build(event cfn.Event, out domain.Outcome) *cfn.Response {
	resp := &cfn.Response{
		Status:             out.Status,
		RequestID:          event.RequestID,
		LogicalResourceID:  event.LogicalResourceID,
		StackID:            event.StackID,
		PhysicalResourceID: PhysicalResourceIDPrefix + event.LogicalResourceID,
	}
	if out.Status != cfn.StatusSuccess {
		resp.Reason = out.Reason
	}
	if len(out.Data) > 0 {
		resp.Data = out.Data
	}
	return resp
}

// Send makes a single PUT of the response document.
func (s *Sender) Send(ctx context.Context, event cfn.Event, out domain.Outcome, log *zap.Logger) error {
	doc := Build(event, out)
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	log.Info("sending response",
		zap.String("status", string(doc.Status)),
		zap.String("reason", doc.Reason),
		zap.String("physicalResourceId", doc.PhysicalResourceID))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// The URL is signed without a content type, so none must be sent.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, event.ResponseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build response request: %w", err)
	}
	req.ContentLength = int64(len(body))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Info("send response result", zap.Int("statusCode", resp.StatusCode), zap.String("reason", resp.Status))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("response upload returned %s", resp.Status)
	}
	return nil
}
