package dlna

// VideoRule is one entry in a video candidate's video-rule list: resolution
// (exact or range), framerate set or range, bitrate range, profile/level
// sets, pixel-aspect set. nil/empty fields are "don't care".
type VideoRule struct {
	Width, Height                     int // exact resolution; both zero = don't care
	WidthMin, WidthMax                int // resolution range; all zero with Height range set = don't care for width
	HeightMin, HeightMax              int
	UseResRange                       bool
	Framerates                        []float64
	FramerateMin, FramerateMax        float64
	UseFramerateRange                 bool
	BitrateMin, BitrateMax            int
	UseBitrateRange                   bool
	Profiles                          []string
	Levels                            []string
	PixelAspects                      []string
}

func (r VideoRule) matchesResolution(d Descriptor) bool {
	if r.UseResRange {
		return inRange(d.Width, r.WidthMin, r.WidthMax) && inRange(d.Height, r.HeightMin, r.HeightMax)
	}
	if r.Width == 0 && r.Height == 0 {
		return true
	}
	return d.Width == r.Width && d.Height == r.Height
}

func (r VideoRule) matchesFramerate(d Descriptor) bool {
	if r.UseFramerateRange {
		return d.Framerate >= r.FramerateMin-frameRateEpsilon && d.Framerate <= r.FramerateMax+frameRateEpsilon
	}
	if len(r.Framerates) == 0 {
		return true
	}
	for _, fr := range r.Framerates {
		if floatNear(fr, d.Framerate) {
			return true
		}
	}
	return false
}

func (r VideoRule) matchesBitrate(d Descriptor) bool {
	if !r.UseBitrateRange {
		return true
	}
	return inRange(d.Bitrate, r.BitrateMin, r.BitrateMax)
}

func matchesSet(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func (r VideoRule) matches(d Descriptor) bool {
	_, profile, level := SplitCodec(d.Codec)
	if d.Profile != "" {
		profile = d.Profile
	}
	if d.Level != "" {
		level = d.Level
	}
	return r.matchesResolution(d) &&
		r.matchesFramerate(d) &&
		r.matchesBitrate(d) &&
		matchesSet(r.Profiles, profile) &&
		matchesSet(r.Levels, level) &&
		matchesSet(r.PixelAspects, d.PixelAspectRatio)
}

// VideoCandidate is one element of a video container's profile array.
type VideoCandidate struct {
	Container  string
	Audio      *AudioRule // optional; must match before video rules are tried
	Video      []VideoRule
	PacketSize *int // mpegts only
	Profile    Profile
}

// MatchVideo implements spec.md §4.4 step 3: for each candidate whose audio
// predicate matches (packet-size checked first when the candidate carries
// one), iterate its video-rule list and return on the first match.
func MatchVideo(d Descriptor, table []VideoCandidate) (Profile, bool) {
	for _, c := range table {
		if c.Container != d.Container {
			continue
		}
		if c.PacketSize != nil && *c.PacketSize != d.PacketSize {
			continue
		}
		if !c.Audio.matches(d) {
			continue
		}
		for _, vr := range c.Video {
			if vr.matches(d) {
				return c.Profile, true
			}
		}
	}
	return Profile{}, false
}
