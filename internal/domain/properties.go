package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Redis maxmemory eviction policies.
const (
	MaxMemPolicyVolatileLRU    = "volatile-lru"
	MaxMemPolicyAllKeysLRU     = "allkeys-lru"
	MaxMemPolicyVolatileLFU    = "volatile-lfu"
	MaxMemPolicyAllKeysLFU     = "allkeys-lfu"
	MaxMemPolicyVolatileRandom = "volatile-random"
	MaxMemPolicyAllKeysRandom  = "allkeys-random"
	MaxMemPolicyVolatileTTL    = "volatile-ttl"
	MaxMemPolicyNoEviction     = "noeviction"
)

// MinReplTimeoutSecs is the smallest accepted replication timeout.
const MinReplTimeoutSecs = 60

// ServiceProperties are the properties every request type needs.
type ServiceProperties struct {
	Region       string `mapstructure:"Region" validate:"required"`
	Cluster      string `mapstructure:"Cluster" validate:"required"`
	ServiceName  string `mapstructure:"ServiceName" validate:"required"`
	DeleteVolume bool   `mapstructure:"DeleteVolume"`
}

// RedisProperties are the resource properties of a Create request.
type RedisProperties struct {
	ServiceProperties `mapstructure:",squash"`

	Shards            int64  `mapstructure:"Shards" validate:"min=1,ne=2"`
	ReplicasPerShard  int64  `mapstructure:"ReplicasPerShard" validate:"min=1"`
	MemoryCacheSizeMB int64  `mapstructure:"MemoryCacheSizeMB" validate:"gt=0"`
	VolumeType        string `mapstructure:"VolumeType" validate:"required"`
	Iops              int64  `mapstructure:"Iops" validate:"min=0"`
	VolumeSizeGB      int64  `mapstructure:"VolumeSizeGB" validate:"gt=0"`
	DisableAOF        bool   `mapstructure:"DisableAOF"`
	AuthPass          string `mapstructure:"AuthPass"`
	ReplTimeoutSecs   int64  `mapstructure:"ReplTimeoutSecs" validate:"min=60"`
	MaxMemPolicy      string `mapstructure:"MaxMemPolicy" validate:"oneof=volatile-lru allkeys-lru volatile-lfu allkeys-lfu volatile-random allkeys-random volatile-ttl noeviction"`
	ConfigCmdName     string `mapstructure:"ConfigCmdName"`
}

var validate = validator.New()

// ParseServiceProperties decodes the properties needed by Update and Delete.
func ParseServiceProperties(props map[string]interface{}) (*ServiceProperties, error) {
	var p ServiceProperties
	if err := decode(props, &p); err != nil {
		return nil, err
	}
	if err := validate.Struct(&p); err != nil {
		return nil, describe(err)
	}
	return &p, nil
}

// ParseRedisProperties decodes and validates the properties of a Create request.
func ParseRedisProperties(props map[string]interface{}) (*RedisProperties, error) {
	var p RedisProperties
	if err := decode(props, &p); err != nil {
		return nil, err
	}
	if err := validate.Struct(&p); err != nil {
		return nil, describe(err)
	}
	return &p, nil
}

// CloudFormation hands every scalar property over as a string, so decoding
// is weakly typed: "3" becomes 3. Flags are set only by the exact string
// "true"; any other value, "True" and "1" included, leaves them off.
func decode(props map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       exactTrueHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		return fmt.Errorf("invalid resource properties: %w", err)
	}
	return nil
}

func exactTrueHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	return reflect.ValueOf(data).String() == "true", nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "ne":
			msgs = append(msgs, fmt.Sprintf("%s must not be %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Service returns the identifying part of the properties.
func (p *ServiceProperties) Service() *ServiceCommonRequest {
	return &ServiceCommonRequest{
		Region:      p.Region,
		Cluster:     p.Cluster,
		ServiceName: p.ServiceName,
	}
}

// ClusterMode reports whether the service is a sharded Redis cluster that
// needs asynchronous initialization.
func (p *RedisProperties) ClusterMode(minShards int64) bool {
	return p.Shards >= minShards
}

// CreateRequest builds the management create call for these properties.
func (p *RedisProperties) CreateRequest(res Resources) *CreateRedisRequest {
	return &CreateRedisRequest{
		Service:  p.Service(),
		Resource: &res,
		Options: &RedisOptions{
			Shards:            p.Shards,
			ReplicasPerShard:  p.ReplicasPerShard,
			MemoryCacheSizeMB: p.MemoryCacheSizeMB,
			Volume: VolumeOptions{
				VolumeType:   p.VolumeType,
				Iops:         p.Iops,
				VolumeSizeGB: p.VolumeSizeGB,
			},
			DisableAOF:      p.DisableAOF,
			AuthPass:        p.AuthPass,
			ReplTimeoutSecs: p.ReplTimeoutSecs,
			MaxMemPolicy:    p.MaxMemPolicy,
			ConfigCmdName:   p.ConfigCmdName,
		},
	}
}
