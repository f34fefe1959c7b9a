// Package decoder turns "Program data:" payloads into typed events.
//
// Every event payload starts with an 8-byte discriminator, the first bytes of
// sha256("event:<Name>"), followed by the borsh-encoded event body. Programs
// register one DiscriminatorDecoder per event type:
//
//	registry := decoder.NewRegistry()
//	registry.RegisterForProgram(programID, decoder.NewDiscriminatorDecoder(
//		"SwapExecuted", programID, decoder.EventDiscriminator("SwapExecuted"), decodeSwap))
//
//	event, err := registry.Decode(payload, &programID)
package decoder

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/pkg/view"
)

// Event is one decoded program event.
type Event struct {
	Name string
	Data interface{}
	// RawData is the full payload, discriminator included.
	RawData       []byte
	ProgramID     solana.PublicKey
	Discriminator []byte
}

// Decoder decodes event payloads of one kind.
type Decoder interface {
	Decode(data []byte) (*Event, error)
	CanDecode(data []byte) bool
	GetName() string
	// GetProgramID is the zero key for decoders shared across programs.
	GetProgramID() solana.PublicKey
}

// Registry routes payloads to decoders, preferring the ones registered for
// the emitting program.
type Registry struct {
	mu               sync.RWMutex
	decoders         map[string]Decoder // "<program>:<name>"
	decodersByPubkey map[solana.PublicKey][]Decoder
}

func NewRegistry() *Registry {
	return &Registry{
		decoders:         make(map[string]Decoder),
		decodersByPubkey: make(map[solana.PublicKey][]Decoder),
	}
}

// RegisterForProgram adds decoder for events emitted by programID. A second
// decoder with the same name replaces the first in the keyed index.
func (r *Registry) RegisterForProgram(programID solana.PublicKey, decoder Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.decoders[programID.String()+":"+decoder.GetName()] = decoder
	r.decodersByPubkey[programID] = append(r.decodersByPubkey[programID], decoder)
}

// Decode tries the decoders of programID first, then every registered one.
func (r *Registry) Decode(data []byte, programID *solana.PublicKey) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if programID != nil && !programID.IsZero() {
		for _, d := range r.decodersByPubkey[*programID] {
			if d.CanDecode(data) {
				return d.Decode(data)
			}
		}
	}
	for _, d := range r.decoders {
		if d.CanDecode(data) {
			return d.Decode(data)
		}
	}
	return nil, fmt.Errorf("no decoder found for data (length: %d)", len(data))
}

// DecodeAll decodes every payload it can and skips the rest. The error is
// always nil; it is kept for callers that treat decoding as fallible.
func (r *Registry) DecodeAll(dataList [][]byte, programID *solana.PublicKey) ([]*Event, error) {
	events := make([]*Event, 0, len(dataList))
	for _, data := range dataList {
		if event, err := r.Decode(data, programID); err == nil && event != nil {
			events = append(events, event)
		}
	}
	return events, nil
}

// ListDecoders returns the registered keys, sorted.
func (r *Registry) ListDecoders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.decoders))
	for key := range r.decoders {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// Discriminator is the 8-byte tag that opens every event payload.
type Discriminator [8]byte

// EventDiscriminator derives the discriminator of the named event.
func EventDiscriminator(name string) Discriminator {
	sum := sha256.Sum256([]byte("event:" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// NewDiscriminator reads a discriminator from the head of data.
func NewDiscriminator(data []byte) Discriminator {
	var disc Discriminator
	if len(data) >= 8 {
		copy(disc[:], data[:8])
	}
	return disc
}

func (d Discriminator) Bytes() []byte { return d[:] }

// DiscriminatorDecoder decodes the body of one event type.
type DiscriminatorDecoder struct {
	name          string
	programID     solana.PublicKey
	discriminator Discriminator
	decodeFunc    func([]byte) (interface{}, error)
}

// NewDiscriminatorDecoder creates a decoder for payloads tagged with
// discriminator. decodeFunc receives the body without the tag.
func NewDiscriminatorDecoder(
	name string,
	programID solana.PublicKey,
	discriminator Discriminator,
	decodeFunc func([]byte) (interface{}, error),
) *DiscriminatorDecoder {
	return &DiscriminatorDecoder{
		name:          name,
		programID:     programID,
		discriminator: discriminator,
		decodeFunc:    decodeFunc,
	}
}

// Decode implements Decoder.
func (d *DiscriminatorDecoder) Decode(data []byte) (*Event, error) {
	eventView, err := view.NewEventView(data)
	if err != nil {
		return nil, err
	}
	return d.DecodeFromView(eventView)
}

// CanDecode implements Decoder.
func (d *DiscriminatorDecoder) CanDecode(data []byte) bool {
	return len(data) >= 8 && NewDiscriminator(data) == d.discriminator
}

func (d *DiscriminatorDecoder) GetName() string                { return d.name }
func (d *DiscriminatorDecoder) GetProgramID() solana.PublicKey { return d.programID }

// Discriminator returns the tag this decoder matches.
func (d *DiscriminatorDecoder) Discriminator() Discriminator { return d.discriminator }

// MatchesView checks the discriminator without copying the payload.
func (d *DiscriminatorDecoder) MatchesView(eventView *view.EventView) bool {
	return Discriminator(eventView.Discriminator()) == d.discriminator
}

// DecodeFromView decodes an event from a zero-copy EventView.
func (d *DiscriminatorDecoder) DecodeFromView(eventView *view.EventView) (*Event, error) {
	if !d.MatchesView(eventView) {
		return nil, fmt.Errorf("discriminator mismatch")
	}

	decoded, err := d.decodeFunc(eventView.Data())
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.name, err)
	}

	disc := eventView.Discriminator()
	return &Event{
		Name:          d.name,
		Data:          decoded,
		RawData:       eventView.FullData(),
		ProgramID:     d.programID,
		Discriminator: disc[:],
	}, nil
}
