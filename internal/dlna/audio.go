package dlna

// AudioRule is the optional audio-stream predicate spec.md §4.4 describes:
// codec, channel range, sample-rate set or range, bitrate range, level set.
// A nil field means "don't care".
type AudioRule struct {
	Codec       string // "" = don't care
	ChannelsMin *int
	ChannelsMax *int
	Rates       []int // exact set; nil = don't care
	RateMin     *int
	RateMax     *int
	BitrateMin  *int
	BitrateMax  *int
	Levels      []string // nil = don't care
}

func (r *AudioRule) matches(d Descriptor) bool {
	if r == nil {
		return true
	}
	base, _, level := SplitCodec(d.Codec)
	if r.Codec != "" && r.Codec != base {
		return false
	}
	if r.ChannelsMin != nil && d.Channels < *r.ChannelsMin {
		return false
	}
	if r.ChannelsMax != nil && d.Channels > *r.ChannelsMax {
		return false
	}
	if r.Rates != nil {
		found := false
		for _, rate := range r.Rates {
			if rate == d.SamplingRate {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.RateMin != nil && d.SamplingRate < *r.RateMin {
		return false
	}
	if r.RateMax != nil && d.SamplingRate > *r.RateMax {
		return false
	}
	if r.BitrateMin != nil && d.Bitrate < *r.BitrateMin {
		return false
	}
	if r.BitrateMax != nil && d.Bitrate > *r.BitrateMax {
		return false
	}
	if r.Levels != nil {
		found := false
		for _, l := range r.Levels {
			if l == level {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AudioCandidate pairs a container match with an audio predicate and the
// profile to emit. Used for the audio-only containers (mp3, wave, 3gp's
// AAC-in-mp4 family handled via mp4 container below).
type AudioCandidate struct {
	Container string
	Audio     *AudioRule
	Profile   Profile
}

// MatchAudio implements spec.md §4.4 step 2: select the container's array,
// return the first candidate whose audio predicate is fully satisfied.
func MatchAudio(d Descriptor, table []AudioCandidate) (Profile, bool) {
	for _, c := range table {
		if c.Container != d.Container {
			continue
		}
		if c.Audio.matches(d) {
			return c.Profile, true
		}
	}
	return Profile{}, false
}
