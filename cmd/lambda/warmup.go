package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

const (
	// WarmupSource identifies scheduled warmup pings.
	WarmupSource = "warmup"

	// WarmupDelay keeps this instance busy while the children start.
	WarmupDelay = 75 * time.Millisecond
)

// WarmupEvent is the payload of a scheduled warmup ping.
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse is returned for a warmup ping.
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// Invoker is the subset of the Lambda client used to fan out pings.
type Invoker interface {
	Invoke(ctx context.Context, params *lambdasdk.InvokeInput, optFns ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error)
}

type warmer struct {
	invoker      Invoker
	functionName string
	delay        time.Duration
	log          *zap.Logger
}

func newWarmer(invoker Invoker, functionName string, log *zap.Logger) *warmer {
	return &warmer{invoker: invoker, functionName: functionName, delay: WarmupDelay, log: log}
}

// IsWarmupEvent reports whether the raw event is a warmup ping.
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal(event, &raw); err != nil {
		return nil, false
	}
	if source, _ := raw["source"].(string); source != WarmupSource {
		return nil, false
	}

	// A ping is a ping even when concurrency is malformed; it only fans out
	// when concurrency is a positive number.
	warmup := &WarmupEvent{Source: WarmupSource}
	if n, ok := raw["concurrency"].(float64); ok && n > 0 {
		warmup.Concurrency = int(n)
	}
	return warmup, true
}

// Handle answers a warmup ping, starting Concurrency extra instances first.
func (w *warmer) Handle(ctx context.Context, warmup *WarmupEvent) (*WarmupResponse, error) {
	warmed := 1 + w.fanOut(ctx, warmup.Concurrency)

	time.Sleep(w.delay)

	w.log.Debug("warmup done", zap.Int("instancesWarmed", warmed))
	return &WarmupResponse{Status: "warm", InstancesWarmed: warmed}, nil
}

// fanOut invokes this function count times asynchronously and returns how
// many invocations were accepted. Children get concurrency 0 so they do not
// fan out again.
func (w *warmer) fanOut(ctx context.Context, count int) int {
	if count == 0 || w.functionName == "" {
		return 0
	}

	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return 0
	}

	accepted := 0
	for i := 0; i < count; i++ {
		_, err := w.invoker.Invoke(ctx, &lambdasdk.InvokeInput{
			FunctionName:   aws.String(w.functionName),
			InvocationType: types.InvocationTypeEvent,
			Payload:        payload,
		})
		if err != nil {
			w.log.Warn("warmup invoke failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		accepted++
	}
	return accepted
}
