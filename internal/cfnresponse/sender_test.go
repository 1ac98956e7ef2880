package cfnresponse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"go.uber.org/zap"

	"github.com/firecamp/redis-cfn-resource/internal/domain"
)

func testEvent(url string) cfn.Event {
	return cfn.Event{
		RequestType:       cfn.RequestCreate,
		RequestID:         "0b637bff-c8f6-4ace-bb6f-1a6e92f29c8a",
		ResponseURL:       url,
		StackID:           "arn:aws:cloudformation:us-east-1:123456789012:stack/lam/98f74630",
		LogicalResourceID: "RedisCustomResource",
	}
}

func TestSend_Success(t *testing.T) {
	var (
		calls  int
		method string
		ctype  []string
		clen   int64
		got    map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		method = r.Method
		ctype = r.Header.Values("Content-Type")
		clen = r.ContentLength
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	out := domain.Succeeded(map[string]interface{}{"VolumeIDs": []string{"vol-1"}})
	err := New(nil, 5*time.Second).Send(context.Background(), testEvent(srv.URL), out, zap.NewNop())
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if len(ctype) != 0 {
		t.Errorf("Content-Type = %v, want none", ctype)
	}
	if clen <= 0 {
		t.Errorf("Content-Length = %d", clen)
	}
	if got["Status"] != "SUCCESS" {
		t.Errorf("Status = %v", got["Status"])
	}
	if r, ok := got["Reason"]; ok && r != "" {
		t.Errorf("success response should carry no reason, got %v", got["Reason"])
	}
	if got["PhysicalResourceId"] != "redis-RedisCustomResource" {
		t.Errorf("PhysicalResourceId = %v", got["PhysicalResourceId"])
	}
	if got["RequestId"] != "0b637bff-c8f6-4ace-bb6f-1a6e92f29c8a" || got["LogicalResourceId"] != "RedisCustomResource" {
		t.Errorf("ids = %v / %v", got["RequestId"], got["LogicalResourceId"])
	}
	data, ok := got["Data"].(map[string]interface{})
	if !ok || data["VolumeIDs"] == nil {
		t.Errorf("Data = %v", got["Data"])
	}
}

func TestBuild_Failure(t *testing.T) {
	doc := Build(testEvent("https://example.invalid"), domain.Failed("create redis failed"))

	if doc.Status != cfn.StatusFailed {
		t.Errorf("Status = %s", doc.Status)
	}
	if doc.Reason != "create redis failed" {
		t.Errorf("Reason = %q", doc.Reason)
	}
	if doc.Data != nil {
		t.Errorf("Data = %v, want nil", doc.Data)
	}
}

func TestBuild_SuccessDropsReason(t *testing.T) {
	out := domain.Outcome{Status: cfn.StatusSuccess, Reason: "leftover"}
	if doc := Build(testEvent(""), out); doc.Reason != "" {
		t.Errorf("Reason = %q, want empty", doc.Reason)
	}
}

func TestSend_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := New(nil, time.Second).Send(context.Background(), testEvent(srv.URL), domain.Failed("x"), zap.NewNop())
	if err == nil {
		t.Errorf("Send() should fail on 403")
	}
}
