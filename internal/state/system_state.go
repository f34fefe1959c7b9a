package state

import bin "github.com/gagliardetto/binary"

// SystemStateLen is the packed size of SystemState.
const SystemStateLen = 8 + 1 + 1 + 8

// SystemState is the global pause switch.
type SystemState struct {
	IsPaused        bool
	PauseReasonCode uint8
	PauseTimestamp  int64
}

func (s *SystemState) Len() int { return SystemStateLen }

// MarshalWithEncoder writes the packed layout.
func (s *SystemState) MarshalWithEncoder(enc *bin.Encoder) error {
	w := &writer{enc: enc}
	w.disc(SystemStateDiscriminator)
	w.boolean(s.IsPaused)
	w.u8(s.PauseReasonCode)
	w.i64(s.PauseTimestamp)
	return w.err
}

// UnmarshalWithDecoder reads the packed layout.
func (s *SystemState) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := &reader{dec: dec}
	r.disc(SystemStateDiscriminator)
	s.IsPaused = r.boolean()
	s.PauseReasonCode = r.u8()
	s.PauseTimestamp = r.i64()
	return r.err
}

func (s *SystemState) Pause(reason uint8, now int64) {
	s.IsPaused = true
	s.PauseReasonCode = reason
	s.PauseTimestamp = now
}

func (s *SystemState) Unpause() {
	*s = SystemState{}
}
