// Package domain contains the payload types exchanged with CloudFormation and
// the cluster management service.
package domain

import "github.com/aws/aws-lambda-go/cfn"

// ServiceTypeRedis is the catalog service type of a Redis service.
const ServiceTypeRedis = "redis"

// ServiceCommonRequest identifies a service. Region and cluster let the
// management service verify the request reached the right server.
type ServiceCommonRequest struct {
	Region      string `json:"Region"`
	Cluster     string `json:"Cluster"`
	ServiceName string `json:"ServiceName"`
}

// Resources is the container resource reservation of every service member.
// Zero Max values mean unlimited.
type Resources struct {
	MaxCPUUnits     int64 `json:"MaxCPUUnits"`
	ReserveCPUUnits int64 `json:"ReserveCPUUnits"`
	MaxMemMB        int64 `json:"MaxMemMB"`
	ReserveMemMB    int64 `json:"ReserveMemMB"`
}

// VolumeOptions describes the EBS data volume of every Redis member.
type VolumeOptions struct {
	VolumeType   string `json:"VolumeType"`
	Iops         int64  `json:"Iops"`
	VolumeSizeGB int64  `json:"VolumeSizeGB"`
}

// RedisOptions are the Redis specific create options.
type RedisOptions struct {
	// Shards >= 3 enables cluster mode; 1 disables it.
	Shards            int64         `json:"Shards"`
	ReplicasPerShard  int64         `json:"ReplicasPerShard"`
	MemoryCacheSizeMB int64         `json:"MemoryCacheSizeMB"`
	Volume            VolumeOptions `json:"Volume"`
	DisableAOF        bool          `json:"DisableAOF"`
	// Empty disables AUTH.
	AuthPass        string `json:"AuthPass"`
	ReplTimeoutSecs int64  `json:"ReplTimeoutSecs"`
	MaxMemPolicy    string `json:"MaxMemPolicy"`
	ConfigCmdName   string `json:"ConfigCmdName"`
}

// CreateRedisRequest is the body of the Catalog-Create-Redis call.
type CreateRedisRequest struct {
	Service  *ServiceCommonRequest `json:"Service"`
	Resource *Resources            `json:"Resource"`
	Options  *RedisOptions         `json:"Options"`
}

// CheckServiceInitRequest is the body of the Catalog-Check-Service-Init call.
type CheckServiceInitRequest struct {
	ServiceType string                `json:"ServiceType"`
	Service     *ServiceCommonRequest `json:"Service"`
}

// CheckServiceInitResponse reports whether the service finished initializing.
type CheckServiceInitResponse struct {
	Initialized   bool   `json:"Initialized"`
	StatusMessage string `json:"StatusMessage"`
}

// DeleteServiceRequest is the body of the Delete-Service call.
type DeleteServiceRequest struct {
	Service *ServiceCommonRequest `json:"Service"`
}

// DeleteServiceResponse lists the EBS volumes left behind by a deleted service.
type DeleteServiceResponse struct {
	VolumeIDs []string `json:"VolumeIDs"`
}

// Outcome is the result reported back to CloudFormation.
type Outcome struct {
	Status cfn.StatusType
	Reason string
	Data   map[string]interface{}
}

// Succeeded returns a success outcome with no reason.
func Succeeded(data map[string]interface{}) Outcome {
	return Outcome{Status: cfn.StatusSuccess, Data: data}
}

// Failed returns a failure outcome carrying reason.
func Failed(reason string) Outcome {
	return Outcome{Status: cfn.StatusFailed, Reason: reason}
}
