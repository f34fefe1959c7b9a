package buffer

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, 0},
		{1, 1},
		{3, 4},
		{8, 8},
		{9, 16},
		{82, 128},
		{165, 256},
		{1025, 2048},
	}

	for _, tt := range tests {
		result := nextPowerOfTwo(tt.input)
		if result != tt.expected {
			t.Errorf("nextPowerOfTwo(%d) = %d; want %d", tt.input, result, tt.expected)
		}
	}
}

func TestPoolGetPut(t *testing.T) {
	pool := NewPool()

	for _, size := range []int{1, 64, 100, 165, 1024, 70000} {
		buf := pool.Get(size)
		if len(buf) != size {
			t.Errorf("Get(%d) returned buffer of length %d", size, len(buf))
		}
		pool.Put(buf)
	}

	if buf := pool.Get(0); buf != nil {
		t.Errorf("Get(0) = %v; want nil", buf)
	}
}

func TestPoolReturnsZeroedBuffers(t *testing.T) {
	pool := NewPool()

	buf := pool.Get(128)
	for i := range buf {
		buf[i] = 0xff
	}
	pool.Put(buf)

	again := pool.Get(128)
	for i, b := range again {
		if b != 0 {
			t.Fatalf("byte %d = %#x after reuse; want 0", i, b)
		}
	}
}

func TestStageCopiesOnSuccess(t *testing.T) {
	dst := bytes.Repeat([]byte{0xaa}, 8)

	n, err := Stage(dst, func(w io.Writer) error {
		_, err := w.Write([]byte{1, 2, 3})
		return err
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d; want 3", n)
	}
	want := []byte{1, 2, 3, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	if !bytes.Equal(dst, want) {
		t.Errorf("dst = %v; want %v", dst, want)
	}
}

func TestStageLeavesDestinationOnFailure(t *testing.T) {
	dst := bytes.Repeat([]byte{0xaa}, 4)
	boom := errors.New("boom")

	_, err := Stage(dst, func(w io.Writer) error {
		if _, err := w.Write([]byte{1, 2}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if !bytes.Equal(dst, bytes.Repeat([]byte{0xaa}, 4)) {
		t.Errorf("dst modified on failure: %v", dst)
	}
}

func TestStageOverflow(t *testing.T) {
	dst := make([]byte, 2)

	_, err := Stage(dst, func(w io.Writer) error {
		_, err := w.Write([]byte{1, 2, 3})
		return err
	})
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("err = %v; want ErrShortBuffer", err)
	}
}

func TestPoolConcurrency(t *testing.T) {
	pool := NewPool()
	done := make(chan bool)
	workers := 10
	iterations := 1000

	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				buf := pool.Get(512)
				buf[0] = byte(j)
				pool.Put(buf)
			}
			done <- true
		}()
	}

	for i := 0; i < workers; i++ {
		<-done
	}
}
