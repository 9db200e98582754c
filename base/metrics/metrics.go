package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcHandlerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reversync",
		Subsystem: "handler",
		Name:      "rpc",
		Help:      "RPC handler statuses by method",
	}, []string{"method", "status", "errorCode"})
	RPCHandlerRequests = func(method, status, errorCode string) prometheus.Counter {
		return rpcHandlerRequests.WithLabelValues(method, status, errorCode)
	}

	syncBatchRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reversync",
		Subsystem: "sync",
		Name:      "records",
		Help:      "Record results by object and operation",
	}, []string{"object", "operation", "status"})
	SyncBatchRecords = func(object, operation, status string) prometheus.Counter {
		return syncBatchRecords.WithLabelValues(object, operation, status)
	}
)
