// Package control serves the health/subscribe/unsubscribe HTTP surface
// (spec.md §6), grounded on the teacher's httpapi.DashboardServer
// mux/JSON-helper conventions.
package control

// HealthResponse is the GET /, GET /health response body.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    float64        `json:"uptime"`
	Memory    MemoryStats    `json:"memory"`
	Services  ServicesStatus `json:"services"`
}

// MemoryStats mirrors the process's current heap usage.
type MemoryStats struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
}

// ServicesStatus summarises each managed collaborator for the health
// response.
type ServicesStatus struct {
	FastFeed    FeedStatus      `json:"fastFeed"`
	DelayedFeed FeedStatus      `json:"delayedFeed"`
	Scheduler   SchedulerStatus `json:"scheduler"`
}

// FeedStatus reports a RealtimeFeed's lifecycle state and subscription
// count.
type FeedStatus struct {
	Status        string `json:"status"`
	Subscriptions int    `json:"subscriptions"`
}

// SchedulerStatus reports the scheduler's run state and watchlist size.
type SchedulerStatus struct {
	Status    string `json:"status"`
	Watchlist int    `json:"watchlist"`
}

// SubscriptionsResponse is the GET /subscriptions response body.
type SubscriptionsResponse struct {
	Subscriptions []string `json:"subscriptions"`
}

// symbolsRequest is the POST /subscribe and POST /unsubscribe request
// body.
type symbolsRequest struct {
	Symbols []string `json:"symbols"`
}

// subscribeResponse is the POST /subscribe, POST /unsubscribe response
// body.
type subscribeResponse struct {
	Success       bool     `json:"success"`
	Subscriptions []string `json:"subscriptions"`
}

// errorResponse is the shared error body for 400, 404 and 503 responses.
type errorResponse struct {
	Error string `json:"error"`
}
