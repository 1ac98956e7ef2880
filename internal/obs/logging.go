// Package obs contains observability utilities such as logging.
package obs

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON logger writing to stdout at the given level.
// An unknown level falls back to info.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// ForEvent returns a child logger tagged with the invocation and
// CloudFormation request identifiers.
func ForEvent(ctx context.Context, log *zap.Logger, event cfn.Event) *zap.Logger {
	fields := []zap.Field{
		zap.String("requestType", string(event.RequestType)),
		zap.String("cfnRequestId", event.RequestID),
		zap.String("logicalResourceId", event.LogicalResourceID),
		zap.String("stackId", event.StackID),
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		fields = append(fields, zap.String("awsRequestId", lc.AwsRequestID))
	}
	return log.With(fields...)
}
