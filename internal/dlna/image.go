package dlna

// ImageCandidate carries width/height ranges; spec.md §4.4 step 4: iterate
// candidates, return first match.
type ImageCandidate struct {
	Container                                 string
	WidthMin, WidthMax, HeightMin, HeightMax  int
	Profile                                   Profile
}

func MatchImage(d Descriptor, table []ImageCandidate) (Profile, bool) {
	for _, c := range table {
		if c.Container != d.Container {
			continue
		}
		if inRange(d.Width, c.WidthMin, c.WidthMax) && inRange(d.Height, c.HeightMin, c.HeightMax) {
			return c.Profile, true
		}
	}
	return Profile{}, false
}
