package decoder

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
)

var testProgramID = solana.MustPublicKeyFromBase58("5JP3Asnf5W9GaJknbLGCE3KtA4ABb3HY6S4Tinph7xQX")

func createTestDecoders(count int) ([]*DiscriminatorDecoder, [][]byte) {
	decoders := make([]*DiscriminatorDecoder, count)
	testData := make([][]byte, 0, count*10)

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("Event%d", i)
		disc := EventDiscriminator(name)
		decoders[i] = NewDiscriminatorDecoder(name, testProgramID, disc, func(body []byte) (interface{}, error) {
			if len(body) < 8 {
				return nil, fmt.Errorf("short body")
			}
			return binary.LittleEndian.Uint64(body), nil
		})

		for j := 0; j < 10; j++ {
			data := make([]byte, 16)
			copy(data, disc[:])
			binary.LittleEndian.PutUint64(data[8:], uint64(i*10+j))
			testData = append(testData, data)
		}
	}
	return decoders, testData
}

func newTestRegistry(decoders []*DiscriminatorDecoder) *Registry {
	registry := NewRegistry()
	for _, d := range decoders {
		registry.RegisterForProgram(testProgramID, d)
	}
	return registry
}

func TestEventDiscriminatorIsStable(t *testing.T) {
	a := EventDiscriminator("SwapExecuted")
	b := EventDiscriminator("SwapExecuted")
	if a != b {
		t.Fatal("Expected identical discriminators for identical names")
	}
	if a == EventDiscriminator("PoolCreated") {
		t.Error("Expected distinct discriminators for distinct names")
	}
}

func TestRegistryDecode(t *testing.T) {
	decoders, data := createTestDecoders(3)
	registry := newTestRegistry(decoders)

	event, err := registry.Decode(data[25], &testProgramID)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.Name != "Event2" {
		t.Errorf("Expected Event2, got %s", event.Name)
	}
	if event.Data.(uint64) != 25 {
		t.Errorf("Expected body 25, got %v", event.Data)
	}
	if event.ProgramID != testProgramID {
		t.Errorf("Unexpected program id %s", event.ProgramID)
	}

	if _, err := registry.Decode([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, &testProgramID); err == nil {
		t.Error("Expected error for unknown discriminator")
	}

	keys := registry.ListDecoders()
	if len(keys) != 3 {
		t.Errorf("Expected 3 decoders, got %d", len(keys))
	}
}

func TestBatchDecodeAllFast(t *testing.T) {
	decoders, data := createTestDecoders(5)
	batch := NewBatchDecoder(newTestRegistry(decoders))

	events, err := batch.DecodeAllFast(data, &testProgramID)
	if err != nil {
		t.Fatalf("DecodeAllFast: %v", err)
	}
	if len(events) != len(data) {
		t.Fatalf("Expected %d events, got %d", len(data), len(events))
	}
	for i, event := range events {
		if event.Data.(uint64) != uint64(i) {
			t.Errorf("Event %d out of order: %v", i, event.Data)
		}
	}
}

func TestBatchCollectErrors(t *testing.T) {
	decoders, data := createTestDecoders(2)
	batch := NewBatchDecoder(newTestRegistry(decoders))

	mixed := [][]byte{data[0], {1, 2}, make([]byte, 16), data[1]}
	result := batch.DecodeAllFastWithOptions(mixed, &testProgramID, &BatchOptions{CollectErrors: true})
	if len(result.Events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(result.Events))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(result.Errors))
	}
	if de, ok := result.Errors[0].(*DecodeError); !ok || de.Index != 1 {
		t.Errorf("Expected error at index 1, got %v", result.Errors[0])
	}

	limited := batch.DecodeAllFastWithOptions(mixed, &testProgramID, &BatchOptions{CollectErrors: true, MaxErrors: 1})
	if len(limited.Errors) != 1 {
		t.Errorf("Expected 1 error with MaxErrors, got %d", len(limited.Errors))
	}
}

func TestBatchDecodeAllParallel(t *testing.T) {
	decoders, data := createTestDecoders(8)
	batch := NewBatchDecoder(newTestRegistry(decoders))

	events, err := batch.DecodeAllParallel(context.Background(), data, &testProgramID, 3)
	if err != nil {
		t.Fatalf("DecodeAllParallel: %v", err)
	}
	if len(events) != len(data) {
		t.Fatalf("Expected %d events, got %d", len(data), len(events))
	}
	for i, event := range events {
		if event.Data.(uint64) != uint64(i) {
			t.Errorf("Event %d out of order: %v", i, event.Data)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := batch.DecodeAllParallel(ctx, data, &testProgramID, 3); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func BenchmarkBatchDecoding(b *testing.B) {
	decoders, data := createTestDecoders(10)
	registry := newTestRegistry(decoders)
	batch := NewBatchDecoder(registry)

	b.Run("Registry", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if events, _ := registry.DecodeAll(data, &testProgramID); len(events) == 0 {
				b.Fatal("no events decoded")
			}
		}
	})

	b.Run("Batch", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if events, _ := batch.DecodeAllFast(data, &testProgramID); len(events) == 0 {
				b.Fatal("no events decoded")
			}
		}
	})
}
