// Package telemetry publishes a periodic JSON snapshot of both cabins
// over MQTT and accepts remote floor-call requests on a command topic.
// Grounded directly on a Snapshot/CmdPayload/atomic.Value publish pattern
// common to industrial-control telemetry code, generalized from VFD
// metrics to cabin state.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/queue"
)

// cabinInfo is the mutable slice of cabin state telemetry reports. It is
// stored as a value inside an atomic.Value per cabin, a read-mostly
// shared-state idiom, instead of a mutex.
type cabinInfo struct {
	Floor       cabin.Floor
	Direction   cabin.Direction
	Temperature float32
}

// State is a status.Sink that also serves as telemetry's read side: the
// move and temperature loops write through it, and Publisher reads the
// latest snapshot off it every publish tick.
type State struct {
	cabins [2]atomic.Value
}

// NewState returns a State with both cabins zeroed.
func NewState() *State {
	s := &State{}
	s.cabins[cabin.A].Store(cabinInfo{})
	s.cabins[cabin.B].Store(cabinInfo{})
	return s
}

func (s *State) UpdateDirection(id cabin.ID, d cabin.Direction) {
	info := s.load(id)
	info.Direction = d
	s.cabins[id].Store(info)
}

func (s *State) UpdateFloor(id cabin.ID, f cabin.Floor) {
	info := s.load(id)
	info.Floor = f
	s.cabins[id].Store(info)
}

func (s *State) UpdateTemperature(id cabin.ID, celsius float32) {
	info := s.load(id)
	info.Temperature = celsius
	s.cabins[id].Store(info)
}

func (s *State) load(id cabin.ID) cabinInfo {
	return s.cabins[id].Load().(cabinInfo)
}

// CabinSnapshot is the JSON shape published for one cabin.
type CabinSnapshot struct {
	Floor       string  `json:"floor"`
	Direction   string  `json:"direction"`
	Temperature float32 `json:"temperature"`
	Emergency   bool    `json:"emergency"`
}

// Snapshot is the JSON document published to the state topic.
type Snapshot struct {
	Seq    uint64        `json:"seq"`
	TS     string        `json:"ts"`
	CabinA CabinSnapshot `json:"cabin_a"`
	CabinB CabinSnapshot `json:"cabin_b"`
}

// Publisher publishes Snapshots on a fixed interval.
type Publisher struct {
	client mqtt.Client
	topic  string
	state  *State
	queues [2]*queue.Queue
	seq    atomic.Uint64
}

// NewPublisher connects to broker and returns a Publisher that reads
// state and each cabin's emergency latch when publishing.
func NewPublisher(broker, clientID, username, password, topic string, state *State, queueA, queueB *queue.Queue) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", tok.Error())
	}

	return &Publisher{
		client: client,
		topic:  topic,
		state:  state,
		queues: [2]*queue.Queue{cabin.A: queueA, cabin.B: queueB},
	}, nil
}

// Run publishes on every tick of interval until stop is closed.
func (p *Publisher) Run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *Publisher) publish() {
	snap := Snapshot{
		Seq:    p.seq.Add(1),
		TS:     time.Now().UTC().Format(time.RFC3339),
		CabinA: p.cabinSnapshot(cabin.A),
		CabinB: p.cabinSnapshot(cabin.B),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("telemetry: marshal snapshot: %v", err)
		return
	}

	p.client.Publish(p.topic, 1, false, data)
}

func (p *Publisher) cabinSnapshot(id cabin.ID) CabinSnapshot {
	info := p.state.load(id)
	return CabinSnapshot{
		Floor:       info.Floor.String(),
		Direction:   info.Direction.String(),
		Temperature: info.Temperature,
		Emergency:   p.queues[id].Emergency(),
	}
}

// Close disconnects from the broker, waiting up to 250ms to flush.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// Client exposes the underlying MQTT connection so a Router can subscribe
// on it instead of opening a second connection to the same broker.
func (p *Publisher) Client() mqtt.Client {
	return p.client
}

// FloorRequest is the command-topic payload for a remote hall/car call.
type FloorRequest struct {
	Cabin string `json:"cabin"`
	Floor string `json:"floor"`
}

// Router subscribes to the command topic and turns FloorRequests into
// queue enqueues, mirroring a Subscribe callback that unmarshals into a
// typed command payload and forwards onto a command channel.
type Router struct {
	queues [2]*queue.Queue
}

// NewRouter builds a Router over both cabins' queues.
func NewRouter(queueA, queueB *queue.Queue) *Router {
	return &Router{queues: [2]*queue.Queue{cabin.A: queueA, cabin.B: queueB}}
}

// Subscribe registers the Router's handler on topic.
func (r *Router) Subscribe(client mqtt.Client, topic string) error {
	tok := client.Subscribe(topic, 1, r.handle)
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		return fmt.Errorf("telemetry: subscribe %s: %w", topic, tok.Error())
	}
	return nil
}

func (r *Router) handle(_ mqtt.Client, msg mqtt.Message) {
	var req FloorRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Printf("telemetry: bad command payload: %v (payload=%q)", err, string(msg.Payload()))
		return
	}

	id, ok := parseCabin(req.Cabin)
	if !ok {
		log.Printf("telemetry: unknown cabin %q", req.Cabin)
		return
	}

	floor, ok := parseFloor(req.Floor)
	if !ok {
		log.Printf("telemetry: unknown floor %q", req.Floor)
		return
	}

	r.queues[id].Enqueue(floor)
}

func parseCabin(s string) (cabin.ID, bool) {
	switch s {
	case "A":
		return cabin.A, true
	case "B":
		return cabin.B, true
	default:
		return 0, false
	}
}

func parseFloor(s string) (cabin.Floor, bool) {
	switch s {
	case "Ground":
		return cabin.Ground, true
	case "First":
		return cabin.First, true
	case "Second":
		return cabin.Second, true
	case "Third":
		return cabin.Third, true
	default:
		return 0, false
	}
}
