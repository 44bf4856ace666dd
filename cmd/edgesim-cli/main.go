// edgesim-cli is a development monitor: watch a device's topics on a live
// broker, dump cache files, generate sample records.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/edgesim/edgesim/helpers/cli"
	"github.com/edgesim/edgesim/internal/sensor"
	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
)

const modName = "edgesim-cli"

var log = log2.NewStderr(log2.LInfo)

func main() {
	log.SetFlags(log2.LInteractiveFlags)
	cli.MainLoop(modName, execute, complete)
}

var suggests = []prompt.Suggest{
	{Text: "watch", Description: "watch <broker-url> <device> : subscribe and print live telemetry"},
	{Text: "cache", Description: "cache <path> : dump a persisted cache file"},
	{Text: "gen", Description: "gen : print one synthetic record"},
	{Text: "exit", Description: "quit"},
}

func complete(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}

func execute(line string) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}
	switch words[0] {
	case "watch":
		if len(words) != 3 {
			log.Errorf("usage: watch <broker-url> <device>")
			return
		}
		watch(words[1], words[2])
	case "cache":
		if len(words) != 2 {
			log.Errorf("usage: cache <path>")
			return
		}
		dumpCache(words[1])
	case "gen":
		b, _ := json.MarshalIndent(sensor.NewGenerator("cli").Generate(), "", "  ")
		fmt.Println(string(b))
	case "exit", "quit":
		os.Exit(0)
	default:
		log.Errorf("unknown command=%s", words[0])
	}
}

func watch(brokerURL, device string) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(modName).
		SetCleanSession(true).
		SetConnectTimeout(10 * time.Second)
	m := mqtt.NewClient(opts)
	if token := m.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Errorf("connect broker=%s err=%v", brokerURL, token.Error())
		return
	}
	defer m.Disconnect(250)

	topicTelemetry := telemetry.TopicTelemetry(device)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if msg.Topic() != topicTelemetry {
			log.Infof("%s %s", msg.Topic(), hex.EncodeToString(msg.Payload()))
			return
		}
		var rec telemetry.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Errorf("%s malformed payload=%x err=%v", msg.Topic(), msg.Payload(), err)
			return
		}
		log.Infof("%s seq=%d t=%.2fC rh=%.1f%% p=%.1fhPa batt=%d%% rssi=%d",
			msg.Topic(), rec.Seq,
			rec.Ambient.TemperatureC, rec.Ambient.HumidityPct, rec.Ambient.PressureHPa,
			rec.Power.BatteryPct, rec.Link.RSSI)
	}
	if token := m.Subscribe(device+"/#", 1, handler); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Errorf("subscribe err=%v", token.Error())
		return
	}
	log.Infof("watching device=%s, interrupt to stop", device)
	select {} // cli.MainLoop signal handler exits the process
}

func dumpCache(path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("read %s err=%v", path, err)
		return
	}
	var rs []telemetry.Record
	if err := json.Unmarshal(b, &rs); err != nil {
		log.Errorf("malformed cache file=%s err=%v", path, err)
		return
	}
	log.Infof("cache file=%s records=%d", path, len(rs))
	for _, rec := range rs {
		fmt.Printf("seq=%-6d time=%s device=%s\n", rec.Seq, time.Unix(0, rec.Time).Format(time.RFC3339), rec.Device)
	}
}
