package vesting

import (
	"math"
	"math/big"

	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
)

// Schedule is the vesting state of one recipient. Times are unix seconds.
type Schedule struct {
	StartTime    uint64
	EndTime      uint64
	TotalLocked  *big.Int
	TotalClaimed *big.Int
	Disabled     bool
	Paused       bool
	// PausedAt is when the current pause began. Accrual is frozen there
	// until the pause is lifted. Meaningful only while Paused is set.
	PausedAt uint64
}

func newSchedule() *Schedule {
	return &Schedule{
		TotalLocked:  new(big.Int),
		TotalClaimed: new(big.Int),
	}
}

// Empty reports whether the schedule carries no allocation and no history.
func (s *Schedule) Empty() bool {
	return s.TotalLocked.Sign() == 0 && s.TotalClaimed.Sign() == 0
}

// Copy returns a deep copy.
func (s *Schedule) Copy() *Schedule {
	cp := *s
	cp.TotalLocked = new(big.Int).Set(s.TotalLocked)
	cp.TotalClaimed = new(big.Int).Set(s.TotalClaimed)
	return &cp
}

// VestedAt returns the linearly vested part of TotalLocked at now,
// rounded down. A paused schedule does not accrue past PausedAt.
func (s *Schedule) VestedAt(now uint64) *big.Int {
	if s.Paused && now > s.PausedAt {
		now = s.PausedAt
	}
	switch {
	case now < s.StartTime:
		return new(big.Int)
	case now >= s.EndTime:
		return new(big.Int).Set(s.TotalLocked)
	}
	elapsed := new(big.Int).SetUint64(now - s.StartTime)
	period := new(big.Int).SetUint64(s.EndTime - s.StartTime)
	return utils.MulDivFloor(s.TotalLocked, elapsed, period)
}

// ClaimableAt returns the vested amount at now minus what was already claimed.
func (s *Schedule) ClaimableAt(now uint64) *big.Int {
	return utils.Sub0(s.VestedAt(now), s.TotalClaimed)
}

// pause freezes accrual at now. Pausing a paused schedule keeps the first
// pause time.
func (s *Schedule) pause(now uint64) {
	if s.Paused {
		return
	}
	s.Paused = true
	s.PausedAt = now
}

// resume lifts the pause at now, moving the schedule forward by the time
// accrual was frozen so that the vested amount carries on from where the
// pause left it.
func (s *Schedule) resume(now uint64) {
	if !s.Paused {
		return
	}
	from := s.PausedAt
	if from < s.StartTime {
		from = s.StartTime
	}
	if from < s.EndTime && now > from {
		shift := now - from
		if shift > math.MaxUint64-s.EndTime {
			shift = math.MaxUint64 - s.EndTime
		}
		s.StartTime += shift
		s.EndTime += shift
	}
	s.Paused = false
	s.PausedAt = 0
}
