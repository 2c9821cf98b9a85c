package domain

const (
	DefaultServiceListenAddress = "0.0.0.0:8080"
	DefaultManagementPath       = "manage"
	DefaultAccessLogCapacity    = 30
	DefaultRecentLogCapacity    = 200
	DefaultRecentLogQueueSize   = 1024
	DefaultLogLevel             = "info"
	DefaultRootLoggerName       = "root"
	DefaultEnvPrefix            = "MGMTD"
	DefaultShutdownTimeoutSecs  = 5
	DefaultTraceExporter        = "none"
	DefaultOTLPEndpoint         = "localhost:4317"
)

// Endpoint names double as their path segment under the management path.
const (
	EndpointAccessLog  = "accesslog"
	EndpointHeapDump   = "heapdump"
	EndpointInFlight   = "inflight"
	EndpointLogging    = "logging"
	EndpointThreads    = "threads"
	EndpointEnvVars    = "envvars"
	EndpointSysProps   = "sysprops"
	EndpointParameters = "parameters"
	EndpointUp         = "up"
	EndpointHealth     = "health"
	EndpointPrometheus = "prometheus"
)

// StandardEndpoints lists every endpoint name the management server knows.
var StandardEndpoints = []string{
	EndpointAccessLog,
	EndpointHeapDump,
	EndpointInFlight,
	EndpointLogging,
	EndpointThreads,
	EndpointEnvVars,
	EndpointSysProps,
	EndpointParameters,
	EndpointUp,
	EndpointHealth,
	EndpointPrometheus,
}
