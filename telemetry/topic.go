package telemetry

import "fmt"

func TopicTelemetry(device string) string { return fmt.Sprintf("%s/w/1t", device) }
func TopicConnect(device string) string   { return fmt.Sprintf("%s/c", device) }
