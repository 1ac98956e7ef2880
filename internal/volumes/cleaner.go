// Package volumes deletes the EBS volumes a deleted service leaves behind.
package volumes

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/firecamp/redis-cfn-resource/internal/config"
	"github.com/firecamp/redis-cfn-resource/internal/retry"
)

const errCodeVolumeNotFound = "InvalidVolume.NotFound"

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DeleteVolume(ctx context.Context, params *ec2.DeleteVolumeInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error)
}

// Result is the outcome of deleting one volume.
type Result struct {
	VolumeID string
	Deleted  bool
	Err      error
}

// Cleaner deletes volumes once they are detached.
type Cleaner struct {
	client EC2API
	wait   retry.Policy
	sleep  retry.SleepFunc
	log    *zap.Logger
}

// New creates a Cleaner. A nil sleep uses retry.Sleep.
func New(client EC2API, cfg config.Config, sleep retry.SleepFunc, log *zap.Logger) *Cleaner {
	return &Cleaner{
		client: client,
		wait:   retry.Policy{Attempts: cfg.VolumeWaitAttempts, Interval: cfg.VolumeWaitInterval},
		sleep:  sleep,
		log:    log,
	}
}

// DeleteAll attempts to delete every volume exactly once. Failures are logged
// and reported in the results, never returned.
func (c *Cleaner) DeleteAll(ctx context.Context, ids []string) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		err := c.deleteOne(ctx, id)
		if err != nil {
			c.log.Error("delete volume failed", zap.String("volumeId", id), zap.Error(err))
		} else {
			c.log.Info("deleted volume", zap.String("volumeId", id))
		}
		results = append(results, Result{VolumeID: id, Deleted: err == nil, Err: err})
	}
	return results
}

func (c *Cleaner) deleteOne(ctx context.Context, id string) error {
	// The volume may still be detaching from the stopped container instance.
	// The delete is attempted once whatever the wait ends with.
	err := retry.Do(ctx, c.wait, c.sleep, func(ctx context.Context, attempt int) error {
		state, err := c.state(ctx, id)
		if isAPIErrorCode(err, errCodeVolumeNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		c.log.Debug("volume state", zap.String("volumeId", id), zap.String("state", string(state)), zap.Int("attempt", attempt))
		if state != types.VolumeStateAvailable {
			return fmt.Errorf("volume %s is %s", id, state)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("volume not available, deleting anyway", zap.String("volumeId", id), zap.Error(err))
	}

	_, err = c.client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(id)})
	if err != nil && !isAPIErrorCode(err, errCodeVolumeNotFound) {
		return fmt.Errorf("DeleteVolume %s: %w", id, err)
	}
	return nil
}

func (c *Cleaner) state(ctx context.Context, id string) (types.VolumeState, error) {
	out, err := c.client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{id}})
	if err != nil {
		return "", err
	}
	if len(out.Volumes) == 0 {
		return "", &smithy.GenericAPIError{Code: errCodeVolumeNotFound, Message: "volume " + id + " not found"}
	}
	return out.Volumes[0].State, nil
}

// isAPIErrorCode checks smithy APIError code
func isAPIErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}
