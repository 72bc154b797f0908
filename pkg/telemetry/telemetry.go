package telemetry

// Stub for self-hosted builds - usage telemetry is a hosted-platform
// feature. This provides no-op implementations to satisfy imports.

type Client struct{}

var GlobalClient *Client = nil

func (c *Client) TrackWithContext(event string, props map[string]interface{}, args ...string) {}
func (c *Client) Track(event string, props map[string]interface{})                            {}
