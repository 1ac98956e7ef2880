// Package main is the entry point for the Redis custom resource Lambda function.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"go.uber.org/zap"

	"github.com/firecamp/redis-cfn-resource/internal/cfnresponse"
	"github.com/firecamp/redis-cfn-resource/internal/config"
	"github.com/firecamp/redis-cfn-resource/internal/handler"
	"github.com/firecamp/redis-cfn-resource/internal/manage"
	"github.com/firecamp/redis-cfn-resource/internal/obs"
	"github.com/firecamp/redis-cfn-resource/internal/resolver"
	"github.com/firecamp/redis-cfn-resource/internal/volumes"
)

// eventHandler handles one CloudFormation custom resource event.
type eventHandler interface {
	Handle(ctx context.Context, event cfn.Event) error
}

func main() {
	cfg := config.Load()

	log, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal("failed to load AWS config", zap.Error(err))
	}

	h := handler.New(cfg, handler.Deps{
		Endpoints: resolver.New(cfg, log),
		Manager:   manage.New(cfg, &http.Client{}),
		Volumes:   volumes.New(ec2.NewFromConfig(awsCfg), cfg, nil, log),
		Responder: cfnresponse.New(&http.Client{}, cfg.CallbackTimeout),
		Log:       log,
	})

	w := newWarmer(lambdasdk.NewFromConfig(awsCfg), os.Getenv("AWS_LAMBDA_FUNCTION_NAME"), log)

	lambda.Start(newEntry(h, w))
}

func newEntry(h eventHandler, w *warmer) func(ctx context.Context, event json.RawMessage) (interface{}, error) {
	return func(ctx context.Context, event json.RawMessage) (interface{}, error) {
		// Warmup detection (MUST be first - a ping has no response URL)
		if warmup, ok := IsWarmupEvent(event); ok {
			return w.Handle(ctx, warmup)
		}

		var ev cfn.Event
		if err := json.Unmarshal(event, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse custom resource event: %w", err)
		}

		return nil, h.Handle(ctx, ev)
	}
}
