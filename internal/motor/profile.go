package motor

import "github.com/micro-nova/gl846-go/internal/models"

// SelectProfile picks the profile for exposure: an exact match if present,
// otherwise the fastest profile that is still at least as slow as the
// exposure, otherwise the slowest profile available.
func SelectProfile(profiles []Profile, exposure uint32) (Profile, error) {
	if len(profiles) == 0 {
		return Profile{}, models.ErrNotFound("no motor profile for exposure %d", exposure)
	}
	best := -1
	slowest := 0
	for i, p := range profiles {
		if p.Exposure == exposure {
			return p, nil
		}
		if p.Exposure > exposure && (best < 0 || p.Exposure < profiles[best].Exposure) {
			best = i
		}
		if p.Exposure > profiles[slowest].Exposure {
			slowest = i
		}
	}
	if best < 0 {
		best = slowest
	}
	return profiles[best], nil
}
