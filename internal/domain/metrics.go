package domain

import "time"

// Metrics records management-side observations of served traffic.
type Metrics interface {
	ObserveRequest(method string, status int, duration time.Duration)
	SetInFlight(count int)
	ObserveAccessRecord()
	ObserveDump(kind string, err error)
	ObserveLevelChange(logger string)
}
