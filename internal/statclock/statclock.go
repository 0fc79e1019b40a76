// Package statclock derives a card's energy from its momentum and age.
//
// Energy is never stored. It grows linearly with the hours elapsed since the
// card was created and saturates at MaxEnergy:
//
//	energy(m, c, t) = min(floor(m * (t - c) / 1h), MaxEnergy),  0 for t <= c
package statclock

import "time"

// MaxEnergy is the ceiling of a fully charged card.
const MaxEnergy = 100000

// Energy returns the energy accrued by a card of the given momentum created
// at createdAt, evaluated at now. Fractional accrual is truncated.
func Energy(momentum int, createdAt, now time.Time) int64 {
	if momentum <= 0 {
		return 0
	}
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= fullCharge(momentum) {
		return MaxEnergy
	}
	// elapsed is below fullCharge, so the product stays under MaxEnergy hours.
	return int64(momentum) * int64(elapsed) / int64(time.Hour)
}

// fullCharge is the shortest age at which a card of the given momentum is
// capped, i.e. ceil(MaxEnergy hours / momentum).
func fullCharge(momentum int) time.Duration {
	total := int64(MaxEnergy) * int64(time.Hour)
	m := int64(momentum)
	return time.Duration((total + m - 1) / m)
}

// EnergyAtTime reconstructs the energy a card had at pastTime.
// Before the card existed it had none.
func EnergyAtTime(momentum int, createdAt, pastTime time.Time) int64 {
	if pastTime.Before(createdAt) {
		return 0
	}
	return Energy(momentum, createdAt, pastTime)
}

// Accrual is the minimal view of a card needed to compute energy.
type Accrual struct {
	Momentum  int
	CreatedAt time.Time
}

// TotalEnergy sums the energy of every card at the given instant.
func TotalEnergy(cards []Accrual, at time.Time) int64 {
	var total int64
	for _, c := range cards {
		total += EnergyAtTime(c.Momentum, c.CreatedAt, at)
	}
	return total
}

// TimeToMax returns how long until a card reaches MaxEnergy, or zero once it
// is already capped. Zero momentum never charges and reports a negative duration.
func TimeToMax(momentum int, createdAt, now time.Time) time.Duration {
	if momentum <= 0 {
		return -1
	}
	full := createdAt.Add(fullCharge(momentum))
	if !now.Before(full) {
		return 0
	}
	return full.Sub(now)
}
