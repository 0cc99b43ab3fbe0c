package testutil

import "net/http"

// Sample backend snapshots

// SampleConfigJSON is a typical GET /config response.
var SampleConfigJSON = `{
  "numTabs": 3,
  "executionSpeed": 1.0,
  "retryAttempts": 5,
  "headlessMode": false,
  "miniWindowMode": false,
  "enableStealth": true,
  "keepCookies": true,
  "discordWebhook": "",
  "discordNotifications": false,
  "systemMonitoring": true,
  "enableLogging": true,
  "autoRestart": false,
  "tabProxies": {"1": "10.0.0.1:8080", "3": "10.0.0.3:8080"}
}`

// SampleStatusJSON is a GET /bot/status response for a running bot.
var SampleStatusJSON = `{"status": "running", "status_text": "Running"}`

// StoppedStatusJSON is a GET /bot/status response for a stopped bot.
var StoppedStatusJSON = `{"status": "stopped", "status_text": "Stopped"}`

// SampleStatsJSON is a GET /stats/participation response.
var SampleStatsJSON = `{"total_participations": 40, "successful_participations": 30, "failed_participations": 10, "total_winnings": 12.5}`

// SampleSystemJSON is a GET /stats/system response.
var SampleSystemJSON = `{"cpu_percent": 23.5, "memory_percent": 61.2, "memory_used": 4294967296, "uptime": 3725}`

// SampleTabsJSON is a GET /bot/tabs response.
var SampleTabsJSON = `[{"id": 1, "status": "active", "url": "https://example.test/a"}, {"id": 2, "status": "idle"}]`

// ReplyOK is a successful command reply.
var ReplyOK = `{"success": true, "message": "ok"}`

// ReplyRejected is a command reply the backend refused.
var ReplyRejected = `{"success": false, "message": "Bot already running"}`

// ServeSnapshots registers the four snapshot endpoints with the sample bodies.
func ServeSnapshots(b *FakeBackend) {
	b.Handle(http.MethodGet, "/config", http.StatusOK, SampleConfigJSON)
	b.Handle(http.MethodGet, "/bot/status", http.StatusOK, SampleStatusJSON)
	b.Handle(http.MethodGet, "/stats/participation", http.StatusOK, SampleStatsJSON)
	b.Handle(http.MethodGet, "/stats/system", http.StatusOK, SampleSystemJSON)
}
