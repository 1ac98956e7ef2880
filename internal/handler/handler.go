// Package handler provides the CloudFormation custom resource handler that
// creates and deletes a Redis service through the cluster management service.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/cfn"
	"go.uber.org/zap"

	"github.com/firecamp/redis-cfn-resource/internal/config"
	"github.com/firecamp/redis-cfn-resource/internal/domain"
	"github.com/firecamp/redis-cfn-resource/internal/manage"
	"github.com/firecamp/redis-cfn-resource/internal/obs"
	"github.com/firecamp/redis-cfn-resource/internal/retry"
	"github.com/firecamp/redis-cfn-resource/internal/volumes"
)

// Default failure reasons, used when no attempt reported anything better.
const (
	reasonUnknown        = "unknown exception"
	reasonCreateFailed   = "create redis failed"
	reasonInitTimedOut   = "wait redis init timed out"
	reasonDeleteTimedOut = "delete redis time out"
)

var errNotInitialized = errors.New("redis service not initialized yet")

// Endpoints resolves the management API base URL of a cluster.
type Endpoints interface {
	Resolve(ctx context.Context, cluster string) (string, error)
}

// Manager is the management API.
type Manager interface {
	CreateRedis(ctx context.Context, baseURL string, req *domain.CreateRedisRequest) error
	CheckServiceInit(ctx context.Context, baseURL string, req *domain.CheckServiceInitRequest) (*domain.CheckServiceInitResponse, error)
	DeleteService(ctx context.Context, baseURL string, req *domain.DeleteServiceRequest) (*domain.DeleteServiceResponse, error)
}

// VolumeCleaner deletes the volumes of a deleted service.
type VolumeCleaner interface {
	DeleteAll(ctx context.Context, ids []string) []volumes.Result
}

// Responder reports the outcome to CloudFormation.
type Responder interface {
	Send(ctx context.Context, event cfn.Event, out domain.Outcome, log *zap.Logger) error
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Endpoints Endpoints
	Manager   Manager
	Volumes   VolumeCleaner
	Responder Responder
	// Sleep pauses between management attempts; nil uses retry.Sleep.
	Sleep retry.SleepFunc
	Log   *zap.Logger
}

// Handler runs one lifecycle event to completion.
type Handler struct {
	cfg  config.Config
	deps Deps
}

// New creates a Handler.
func New(cfg config.Config, deps Deps) *Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Handler{cfg: cfg, deps: deps}
}

// Handle performs the requested lifecycle action and always finishes with
// exactly one response to CloudFormation. It never returns an error so the
// asynchronous invocation is not retried.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) error {
	log := obs.ForEvent(ctx, h.deps.Log, event)
	log.Info("received event", zap.Any("resourceProperties", redact(event.ResourceProperties)))

	runCtx, cancel := h.runContext(ctx)
	out := h.run(runCtx, event, log)
	cancel()

	if err := h.deps.Responder.Send(ctx, event, out, log); err != nil {
		log.Error("send response failed", zap.Error(err))
	}
	return nil
}

// runContext keeps CallbackReserve of the invocation time for the response.
func (h *Handler) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	dl, ok := ctx.Deadline()
	if !ok || h.cfg.CallbackReserve <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, dl.Add(-h.cfg.CallbackReserve))
}

func (h *Handler) run(ctx context.Context, event cfn.Event, log *zap.Logger) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected panic", zap.Any("panic", r), zap.Stack("stack"))
			out = domain.Failed(fmt.Sprintf("%s: %v", reasonUnknown, r))
		}
	}()

	switch event.RequestType {
	case cfn.RequestCreate:
		return h.create(ctx, event, log)
	case cfn.RequestUpdate:
		log.Info("update does not change the redis service")
		return domain.Succeeded(nil)
	case cfn.RequestDelete:
		return h.delete(ctx, event, log)
	default:
		return domain.Failed(fmt.Sprintf("unsupported request type %q", event.RequestType))
	}
}

func (h *Handler) create(ctx context.Context, event cfn.Event, log *zap.Logger) domain.Outcome {
	props, err := domain.ParseRedisProperties(event.ResourceProperties)
	if err != nil {
		log.Error("invalid resource properties", zap.Error(err))
		return domain.Failed(err.Error())
	}

	baseURL, err := h.deps.Endpoints.Resolve(ctx, props.Cluster)
	if err != nil {
		return domain.Failed(err.Error())
	}

	req := props.CreateRequest(domain.Resources{
		ReserveCPUUnits: h.cfg.ReserveCPUUnits,
		ReserveMemMB:    h.cfg.ReserveMemMB,
	})

	reason := reasonCreateFailed
	err = retry.Do(ctx, h.policy(h.cfg.CreateAttempts), h.deps.Sleep, func(ctx context.Context, attempt int) error {
		if err := h.deps.Manager.CreateRedis(ctx, baseURL, req); err != nil {
			reason = reasonOf(err)
			log.Warn("create redis failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		log.Error("create redis gave up", zap.Error(err))
		return domain.Failed(reason)
	}
	log.Info("redis service created", zap.Int64("shards", props.Shards))

	if !props.ClusterMode(h.cfg.ClusterModeMinShards) {
		return domain.Succeeded(nil)
	}
	return h.waitInit(ctx, baseURL, props, log)
}

// waitInit polls until the cluster mode initialization task has finished.
func (h *Handler) waitInit(ctx context.Context, baseURL string, props *domain.RedisProperties, log *zap.Logger) domain.Outcome {
	req := &domain.CheckServiceInitRequest{
		ServiceType: domain.ServiceTypeRedis,
		Service:     props.Service(),
	}

	reason := reasonInitTimedOut
	err := retry.Do(ctx, h.policy(h.cfg.InitAttempts), h.deps.Sleep, func(ctx context.Context, attempt int) error {
		resp, err := h.deps.Manager.CheckServiceInit(ctx, baseURL, req)
		if err != nil {
			reason = reasonOf(err)
			log.Warn("wait redis init failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		log.Info("redis init status", zap.Int("attempt", attempt),
			zap.Bool("initialized", resp.Initialized), zap.String("statusMessage", resp.StatusMessage))
		if !resp.Initialized {
			return errNotInitialized
		}
		return nil
	})
	if err != nil {
		log.Error("wait redis init gave up", zap.Error(err))
		return domain.Failed(reason)
	}
	return domain.Succeeded(nil)
}

func (h *Handler) delete(ctx context.Context, event cfn.Event, log *zap.Logger) domain.Outcome {
	props, err := domain.ParseServiceProperties(event.ResourceProperties)
	if err != nil {
		log.Error("invalid resource properties", zap.Error(err))
		return domain.Failed(err.Error())
	}

	baseURL, err := h.deps.Endpoints.Resolve(ctx, props.Cluster)
	if err != nil {
		return domain.Failed(err.Error())
	}

	req := &domain.DeleteServiceRequest{Service: props.Service()}

	reason := reasonDeleteTimedOut
	var resp *domain.DeleteServiceResponse
	err = retry.Do(ctx, h.policy(h.cfg.DeleteAttempts), h.deps.Sleep, func(ctx context.Context, attempt int) error {
		r, err := h.deps.Manager.DeleteService(ctx, baseURL, req)
		if err != nil {
			reason = reasonOf(err)
			log.Warn("delete redis failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		log.Error("delete redis gave up", zap.Error(err))
		return domain.Failed(reason)
	}

	volumeIDs := resp.VolumeIDs
	if volumeIDs == nil {
		volumeIDs = []string{}
	}
	log.Info("redis service deleted", zap.Strings("volumeIds", volumeIDs))

	if props.DeleteVolume {
		failed := 0
		for _, r := range h.deps.Volumes.DeleteAll(ctx, volumeIDs) {
			if !r.Deleted {
				failed++
			}
		}
		if failed > 0 {
			log.Warn("some volumes were not deleted, please delete them manually", zap.Int("failed", failed))
		}
	} else if len(volumeIDs) > 0 {
		log.Info("volumes are kept, please delete them manually")
	}

	return domain.Succeeded(map[string]interface{}{"VolumeIDs": volumeIDs})
}

func (h *Handler) policy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, Interval: h.cfg.RetryInterval}
}

// reasonOf turns an attempt error into the reason reported to CloudFormation.
// Management errors report the HTTP reason phrase.
func reasonOf(err error) string {
	var se *manage.StatusError
	if errors.As(err, &se) {
		return se.Reason
	}
	return err.Error()
}

// redact hides the AUTH password from logs.
func redact(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	if v, ok := out["AuthPass"].(string); ok && v != "" {
		out["AuthPass"] = "******"
	}
	return out
}
