package rbc

import (
	"sync"

	"localizer-go/fusion"
)

// Publisher turns tick results into RBC messages. Valid estimates go out
// as FlagPosition; fresh aligned ones are repeated as FlagRawEstimate.
// State changes emit a FlagStatus message.
type Publisher struct {
	s     *Sender
	mu    sync.Mutex
	seq   map[uint32]uint16
	state map[uint32]fusion.State
}

func NewPublisher(s *Sender) *Publisher {
	return &Publisher{s: s, seq: map[uint32]uint16{}, state: map[uint32]fusion.State{}}
}

func (p *Publisher) Publish(vehicle uint32, res fusion.TickResult) {
	p.mu.Lock()
	prev, known := p.state[vehicle]
	p.state[vehicle] = res.State
	var seq uint16
	if res.EstimateValid {
		seq = p.seq[vehicle]
		p.seq[vehicle] = seq + 1
	}
	p.mu.Unlock()

	if !known || prev != res.State {
		p.s.Send(FormatStatus(vehicle, res), FlagStatus)
	}
	if !res.EstimateValid {
		return
	}
	msg := FormatPosition(vehicle, seq, res.Output)
	p.s.Send(msg, FlagPosition)
	if res.RawEstimateValid {
		p.s.Send(msg, FlagRawEstimate)
	}
}
