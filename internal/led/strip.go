package led

// Strip is the frame buffer of one physical chain. Its length is fixed at
// construction. Strip does no locking of its own; the owner serializes access.
type Strip struct {
	pixels []Pixel
	dirty  bool
	gen    uint64
}

func NewStrip(n int) *Strip {
	return &Strip{pixels: make([]Pixel, n)}
}

func (s *Strip) Len() int {
	return len(s.pixels)
}

// At returns the pixel at i, or black and false when i is out of range.
func (s *Strip) At(i int) (Pixel, bool) {
	if i < 0 || i >= len(s.pixels) {
		return Black, false
	}
	return s.pixels[i], true
}

// Set writes one pixel. Out of range indices are rejected.
func (s *Strip) Set(i int, p Pixel) bool {
	if i < 0 || i >= len(s.pixels) {
		return false
	}
	s.pixels[i] = p
	s.Touch()
	return true
}

func (s *Strip) Fill(p Pixel) {
	for i := range s.pixels {
		s.pixels[i] = p
	}
	s.Touch()
}

// FillRange paints count pixels from start, stopping at the end of the strip.
func (s *Strip) FillRange(start, count int, p Pixel) bool {
	if start < 0 || start >= len(s.pixels) || count <= 0 {
		return false
	}
	end := min(start+count, len(s.pixels))
	for i := start; i < end; i++ {
		s.pixels[i] = p
	}
	s.Touch()
	return true
}

// Gradient interpolates linearly from one color to another across count
// pixels starting at start, clipped to the strip.
func (s *Strip) Gradient(start, count int, from, to Pixel) bool {
	if start < 0 || start >= len(s.pixels) || count <= 0 {
		return false
	}
	end := min(start+count, len(s.pixels))
	n := end - start
	for i := 0; i < n; i++ {
		var t float32
		if n > 1 {
			t = float32(i) / float32(n-1)
		}
		s.pixels[start+i] = from.Lerp(to, t)
	}
	s.Touch()
	return true
}

// Pixels exposes the backing slice for bulk writers such as the animation
// compositor. Callers must Touch the strip after writing.
func (s *Strip) Pixels() []Pixel {
	return s.pixels
}

// Touch marks the strip as needing transmission and bumps its generation.
func (s *Strip) Touch() {
	s.dirty = true
	s.gen++
}

func (s *Strip) Dirty() bool {
	return s.dirty
}

func (s *Strip) Generation() uint64 {
	return s.gen
}

// Clean clears the dirty flag if nothing was written since generation gen was
// captured. It reports whether the flag was cleared.
func (s *Strip) Clean(gen uint64) bool {
	if s.gen != gen {
		return false
	}
	s.dirty = false
	return true
}
