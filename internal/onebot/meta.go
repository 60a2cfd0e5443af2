package onebot

// Status is the bot health reported by heartbeats and get_status.
type Status struct {
	Online bool `json:"online"`
	Good   bool `json:"good"`
}

// LifecycleEvent is sent when an event connection is established.
type LifecycleEvent struct {
	Base
	MetaEventType string `json:"meta_event_type"`
	SubType       string `json:"sub_type"`
}

func NewLifecycleConnect(selfID int64) *LifecycleEvent {
	return &LifecycleEvent{
		Base:          newBase(selfID, PostMetaEvent),
		MetaEventType: "lifecycle",
		SubType:       "connect",
	}
}

// HeartbeatEvent is sent periodically by active and event-pushing adapters.
type HeartbeatEvent struct {
	Base
	MetaEventType string `json:"meta_event_type"`
	Status        Status `json:"status"`
	Interval      int64  `json:"interval"`
}

func NewHeartbeat(selfID, intervalMs int64, status Status) *HeartbeatEvent {
	return &HeartbeatEvent{
		Base:          newBase(selfID, PostMetaEvent),
		MetaEventType: "heartbeat",
		Status:        status,
		Interval:      intervalMs,
	}
}
