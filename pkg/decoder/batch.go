package decoder

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/lugondev/fixed-ratio-trading/pkg/view"
)

type BatchOptions struct {
	CollectErrors bool
	MaxErrors     int
}

type BatchResult struct {
	Events []*Event
	Errors []error
}

// DecodeError reports which payload of a batch failed.
type DecodeError struct {
	Index   int
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at index %d: %s", e.Index, e.Message)
}

// BatchDecoder decodes many payloads against one registry snapshot, matching
// discriminators through a lookup table instead of probing every decoder.
type BatchDecoder struct {
	registry *Registry
}

func NewBatchDecoder(registry *Registry) *BatchDecoder {
	return &BatchDecoder{registry: registry}
}

// DecodeAllFast decodes what it can and silently skips the rest.
func (b *BatchDecoder) DecodeAllFast(dataList [][]byte, programID *solana.PublicKey) ([]*Event, error) {
	return b.DecodeAllFastWithOptions(dataList, programID, nil).Events, nil
}

func (b *BatchDecoder) DecodeAllFastWithOptions(dataList [][]byte, programID *solana.PublicKey, opts *BatchOptions) *BatchResult {
	result := &BatchResult{Events: make([]*Event, 0, len(dataList))}
	if len(dataList) == 0 {
		return result
	}

	collectErrors := opts != nil && opts.CollectErrors
	maxErrors := 0
	if opts != nil && opts.MaxErrors > 0 {
		maxErrors = opts.MaxErrors
	}

	matcher, others := b.snapshot(programID)
	for i, data := range dataList {
		event, err := decodeOne(data, matcher, others)
		if err == nil {
			result.Events = append(result.Events, event)
			continue
		}
		if !collectErrors {
			continue
		}
		result.Errors = append(result.Errors, &DecodeError{Index: i, Message: err.Error()})
		if maxErrors > 0 && len(result.Errors) >= maxErrors {
			break
		}
	}
	return result
}

// DecodeAllParallel splits dataList across workers goroutines. Output keeps
// input order; undecodable payloads are dropped.
func (b *BatchDecoder) DecodeAllParallel(ctx context.Context, dataList [][]byte, programID *solana.PublicKey, workers int) ([]*Event, error) {
	if len(dataList) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 4
	}

	matcher, others := b.snapshot(programID)
	slots := make([]*Event, len(dataList))
	chunkSize := (len(dataList) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(dataList); start += chunkSize {
		end := min(start+chunkSize, len(dataList))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if event, err := decodeOne(dataList[i], matcher, others); err == nil {
					slots[i] = event
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(slots))
	for _, event := range slots {
		if event != nil {
			events = append(events, event)
		}
	}
	return events, nil
}

func (b *BatchDecoder) snapshot(programID *solana.PublicKey) (*DiscriminatorMatcher, []Decoder) {
	b.registry.mu.RLock()
	defer b.registry.mu.RUnlock()

	var decoders []Decoder
	if programID != nil && !programID.IsZero() {
		decoders = b.registry.decodersByPubkey[*programID]
	}
	if len(decoders) == 0 {
		for _, d := range b.registry.decoders {
			decoders = append(decoders, d)
		}
	}

	var tagged []*DiscriminatorDecoder
	var others []Decoder
	for _, d := range decoders {
		if dd, ok := d.(*DiscriminatorDecoder); ok {
			tagged = append(tagged, dd)
		} else {
			others = append(others, d)
		}
	}
	return NewDiscriminatorMatcher(tagged), others
}

func decodeOne(data []byte, matcher *DiscriminatorMatcher, others []Decoder) (*Event, error) {
	eventView, err := view.NewEventView(data)
	if err != nil {
		return nil, fmt.Errorf("data too short: need at least 8 bytes")
	}
	if d, ok := matcher.Match(eventView.Discriminator()); ok {
		return d.DecodeFromView(eventView)
	}
	for _, d := range others {
		if d.CanDecode(data) {
			return d.Decode(data)
		}
	}
	return nil, fmt.Errorf("no decoder matched")
}

// DiscriminatorMatcher maps discriminators to their decoders.
type DiscriminatorMatcher struct {
	discriminators map[Discriminator]*DiscriminatorDecoder
}

func NewDiscriminatorMatcher(decoders []*DiscriminatorDecoder) *DiscriminatorMatcher {
	m := &DiscriminatorMatcher{discriminators: make(map[Discriminator]*DiscriminatorDecoder, len(decoders))}
	for _, d := range decoders {
		m.discriminators[d.discriminator] = d
	}
	return m
}

func (m *DiscriminatorMatcher) Match(discriminator [8]byte) (*DiscriminatorDecoder, bool) {
	d, ok := m.discriminators[discriminator]
	return d, ok
}
